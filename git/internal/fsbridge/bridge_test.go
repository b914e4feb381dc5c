package fsbridge

import (
	"os"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ciotto/telegram-bot-deploy/fs"
	"github.com/ciotto/telegram-bot-deploy/fs/billy"
)

// plainFS satisfies fs.Filesystem without being billy-backed.
type plainFS struct{}

func (plainFS) Exists(string) (bool, error)                    { return false, nil }
func (plainFS) MkdirAll(string, os.FileMode) error             { return nil }
func (plainFS) ReadFile(string) ([]byte, error)                { return nil, nil }
func (plainFS) WriteFile(string, []byte, os.FileMode) error    { return nil }
func (plainFS) Remove(string) error                            { return nil }
func (plainFS) Stat(string) (os.FileInfo, error)               { return nil, os.ErrNotExist }

var _ fs.Filesystem = plainFS{}

func TestToBillyFilesystem(t *testing.T) {
	t.Run("success with billy.FS", func(t *testing.T) {
		memFS := memfs.New()

		result, err := ToBillyFilesystem(billy.NewFS(memFS))
		require.NoError(t, err)
		assert.Equal(t, memFS, result)
	})

	t.Run("error with non-billy.FS", func(t *testing.T) {
		result, err := ToBillyFilesystem(plainFS{})
		require.Error(t, err)
		assert.Nil(t, result)
		assert.Contains(t, err.Error(), "filesystem must be a billy.FS")
	})
}

func TestNewStorage(t *testing.T) {
	for _, size := range []int{-1, 0, 500} {
		memFS := memfs.New()
		storage := NewStorage(memFS, size)
		require.NotNil(t, storage)
		assert.Equal(t, memFS, storage.Filesystem())
	}
}

func TestScope(t *testing.T) {
	memFS := memfs.New()

	worktree, storage, err := Scope(billy.NewFS(memFS), "repo", 0)
	require.NoError(t, err)
	require.NotNil(t, storage)

	require.NoError(t, util.WriteFile(worktree, "bot.py", []byte("print()"), 0o644))
	_, err = memFS.Stat("repo/bot.py")
	assert.NoError(t, err)

	require.NoError(t, util.WriteFile(storage.Filesystem(), "HEAD", []byte("ref: refs/heads/master\n"), 0o644))
	_, err = memFS.Stat("repo/.git/HEAD")
	assert.NoError(t, err)

	_, _, err = Scope(plainFS{}, "repo", 0)
	assert.Error(t, err)
}
