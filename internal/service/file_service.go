package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"commentboard/internal/middleware"
	"commentboard/internal/models"
	"commentboard/internal/observability"
	"commentboard/internal/storage"

	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
)

const (
	MaxImageBytes   = 5 * 1024 * 1024
	MaxTextBytes    = 100 * 1024
	ThumbnailWidth  = 320
	ThumbnailHeight = 240
	JPEGQuality     = 82

	// PublicPrefix is the URL prefix attachments are served under.
	PublicPrefix    = "/uploads/"
	thumbnailSuffix = ".thumb"
)

var canonicalExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"text/plain": ".txt",
}

var contentTypesByExtension = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".txt":  "text/plain; charset=utf-8",
}

// FileUpload is an attachment as received from the client.
type FileUpload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// FileService validates attachments and keeps them in a storage.Store,
// rendering a bounded thumbnail next to every image.
type FileService struct {
	store storage.Store
}

// NewFileService returns a FileService over store.
func NewFileService(store storage.Store) *FileService {
	return &FileService{store: store}
}

// Save validates and stores upload. When thumbnail is set and the upload is
// an image, a copy scaled to fit 320x240 is stored alongside; failing to
// produce it only leaves ThumbnailPath empty. A context that ends while the
// thumbnail renders removes the stored original and returns the context
// error.
func (s *FileService) Save(ctx context.Context, upload FileUpload, thumbnail bool) (*models.Attachment, error) {
	contentType := normalizeContentType(upload.ContentType)
	canonical, ok := canonicalExtensions[contentType]
	if !ok {
		return nil, models.NewValidationError("Invalid file",
			fmt.Sprintf("file type %q is not allowed; use JPG, PNG, GIF or TXT", upload.ContentType))
	}

	size := int64(len(upload.Data))
	fileType := models.FileTypeForExtension(canonical)
	limit := int64(MaxImageBytes)
	if fileType == models.FileTypeText {
		limit = MaxTextBytes
	}
	if size == 0 {
		return nil, models.NewValidationError("Invalid file", "file is empty")
	}
	if size > limit {
		return nil, models.NewValidationError("Invalid file",
			fmt.Sprintf("file exceeds the %d byte limit for %s files", limit, fileType))
	}

	ext := strings.ToLower(filepath.Ext(upload.FileName))
	if ct, known := contentTypesByExtension[ext]; !known || normalizeContentType(ct) != contentType {
		ext = canonical
	}

	id := uuid.NewString()
	storedName := id + ext
	if err := s.store.Put(ctx, storedName, upload.Data, contentType); err != nil {
		return nil, fmt.Errorf("store attachment: %w", err)
	}

	attachment := &models.Attachment{
		Name:      strings.TrimSuffix(filepath.Base(upload.FileName), filepath.Ext(upload.FileName)),
		Extension: ext,
		Size:      size,
		Path:      PublicPrefix + storedName,
		Type:      fileType,
	}

	if fileType != models.FileTypeImage || !thumbnail {
		return attachment, nil
	}

	thumbName := id + thumbnailSuffix + ext
	done := make(chan error, 1)
	go func() {
		done <- s.storeThumbnail(ctx, thumbName, upload.Data)
	}()

	select {
	case <-ctx.Done():
		// The thumbnail write may still be in flight; let it land before
		// removing both files.
		<-done
		cleanup := context.WithoutCancel(ctx)
		_ = s.store.Delete(cleanup, storedName)
		_ = s.store.Delete(cleanup, thumbName)
		return nil, ctx.Err()
	case err := <-done:
		if err != nil {
			observability.SideEffectFailures.WithLabelValues("thumbnail").Inc()
			middleware.Logger.WarnContext(ctx, "thumbnail generation failed",
				"step", "thumbnail", "file", storedName, "error", err)
			return attachment, nil
		}
	}
	attachment.ThumbnailPath = PublicPrefix + thumbName
	return attachment, nil
}

func (s *FileService) storeThumbnail(ctx context.Context, name string, data []byte) error {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	encoded, err := encodeImage(resizeToFit(src, ThumbnailWidth, ThumbnailHeight), filepath.Ext(name))
	if err != nil {
		return fmt.Errorf("encode thumbnail: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.store.Put(ctx, name, encoded, ContentTypeForName(name))
}

// Delete removes the attachment at path and its thumbnail. Missing files
// are ignored.
func (s *FileService) Delete(ctx context.Context, path string) error {
	name, ok := storedNameFromPath(path)
	if !ok {
		return nil
	}
	ext := filepath.Ext(name)
	thumbName := strings.TrimSuffix(name, ext) + thumbnailSuffix + ext
	return errors.Join(s.store.Delete(ctx, name), s.store.Delete(ctx, thumbName))
}

// Exists reports whether an attachment is stored at path.
func (s *FileService) Exists(ctx context.Context, path string) (bool, error) {
	name, ok := storedNameFromPath(path)
	if !ok {
		return false, nil
	}
	return s.store.Exists(ctx, name)
}

// Read opens the attachment at path and returns it with its content type.
// The caller must close the reader.
func (s *FileService) Read(ctx context.Context, path string) (io.ReadCloser, string, error) {
	name, ok := storedNameFromPath(path)
	if !ok {
		return nil, "", models.NewNotFoundError("File", path)
	}
	rc, err := s.store.Open(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidName) {
			return nil, "", models.NewNotFoundError("File", path)
		}
		return nil, "", models.NewInternalError(err)
	}
	return rc, ContentTypeForName(name), nil
}

// ContentTypeForName infers a response content type from the extension.
func ContentTypeForName(name string) string {
	if ct, ok := contentTypesByExtension[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// storedNameFromPath accepts "/uploads/x.png", "uploads/x.png" or "x.png".
func storedNameFromPath(p string) (string, bool) {
	p = strings.TrimPrefix(strings.TrimSpace(p), "/")
	p = strings.TrimPrefix(p, strings.TrimPrefix(PublicPrefix, "/"))
	if !storage.ValidName(p) {
		return "", false
	}
	return p, true
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scale := min(float64(maxWidth)/float64(w), float64(maxHeight)/float64(h))
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

// encodeImage writes img in the format implied by ext.
func encodeImage(img image.Image, ext string) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	var err error
	switch ext {
	case ".png":
		err = png.Encode(buf, img)
	case ".gif":
		err = gif.Encode(buf, img, nil)
	default:
		err = jpeg.Encode(buf, img, &jpeg.Options{Quality: JPEGQuality})
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if mediaType == "image/jpg" {
		return "image/jpeg"
	}
	return mediaType
}
