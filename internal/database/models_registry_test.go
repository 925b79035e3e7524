package database

import (
	"testing"

	modelspkg "commentboard/internal/models"

	"github.com/stretchr/testify/require"
)

func TestPersistentModels_UsersBeforeComments(t *testing.T) {
	userIdx, commentIdx := -1, -1
	for i, model := range PersistentModels() {
		switch model.(type) {
		case *modelspkg.User:
			userIdx = i
		case *modelspkg.Comment:
			commentIdx = i
		}
	}
	require.NotEqual(t, -1, userIdx)
	require.NotEqual(t, -1, commentIdx)
	require.Less(t, userIdx, commentIdx)
}
