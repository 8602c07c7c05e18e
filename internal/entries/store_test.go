package entries

import (
	"context"
	"errors"
	"testing"

	"drive-service/internal/domain/entry"
	"drive-service/internal/repository/memory"
	apperrors "drive-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(memory.New(), 16, zerolog.Nop())
}

func mkdir(t *testing.T, s *Store, owner uuid.UUID, parent *uuid.UUID, name string) *entry.Entry {
	t.Helper()
	e, err := s.CreateDirectory(context.Background(), entry.CreateDirectoryInput{OwnerID: owner, ParentID: parent, Name: name})
	require.NoError(t, err)
	return e
}

func mkfile(t *testing.T, s *Store, owner uuid.UUID, parent *uuid.UUID, name string, size int64) *entry.Entry {
	t.Helper()
	e, err := s.CreateFile(context.Background(), nil, entry.CreateFileInput{
		OwnerID:    owner,
		ParentID:   parent,
		Name:       name,
		Size:       size,
		MimeType:   "application/octet-stream",
		Hash:       "sha256:abc",
		StorageKey: "users/" + owner.String() + "/" + uuid.NewString(),
	})
	require.NoError(t, err)
	return e
}

func TestEnsureRoot_Idempotent(t *testing.T) {
	s := newTestStore(t)
	owner := uuid.New()

	first, err := s.EnsureRoot(context.Background(), nil, owner)
	require.NoError(t, err)
	second, err := s.EnsureRoot(context.Background(), nil, owner)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.IsRoot())
	assert.Equal(t, entry.RootName, first.Name)
}

func TestCreateFile_DisambiguatesSiblingName(t *testing.T) {
	s := newTestStore(t)
	owner := uuid.New()
	docs := mkdir(t, s, owner, nil, "docs")

	first := mkfile(t, s, owner, &docs.ID, "report.pdf", 10)
	second := mkfile(t, s, owner, &docs.ID, "report.pdf", 20)

	assert.Equal(t, "report.pdf", first.Name)
	assert.Equal(t, "report (1).pdf", second.Name)
	assert.Equal(t, docs.ID, *second.ParentID)
}

func TestCreateFile_ShapeAndValidation(t *testing.T) {
	s := newTestStore(t)
	owner := uuid.New()

	f := mkfile(t, s, owner, nil, "a.bin", 0)
	require.NotNil(t, f.Size)
	assert.Equal(t, int64(0), *f.Size)
	assert.NotNil(t, f.StorageKey)

	d := mkdir(t, s, owner, nil, "dir")
	assert.Nil(t, d.Size)
	assert.Nil(t, d.StorageKey)

	_, err := s.CreateFile(context.Background(), nil, entry.CreateFileInput{
		OwnerID: owner, Name: "neg", Size: -1, MimeType: "x", Hash: "h", StorageKey: "k",
	})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	_, err = s.CreateFile(context.Background(), nil, entry.CreateFileInput{
		OwnerID: owner, Name: "nokey", Size: 1, MimeType: "x", Hash: "h",
	})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestCreateFile_IdempotencyKeyReturnsOriginal(t *testing.T) {
	s := newTestStore(t)
	owner := uuid.New()
	in := entry.CreateFileInput{
		OwnerID: owner, Name: "photo.jpg", Size: 5, MimeType: "image/jpeg", Hash: "h", StorageKey: "k",
		IdempotencyKey: "upload-1",
	}

	first, err := s.CreateFile(context.Background(), nil, in)
	require.NoError(t, err)
	second, err := s.CreateFile(context.Background(), nil, in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	children, err := s.ListChildren(context.Background(), owner, nil, entry.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, children, 1)
}

func TestCreate_ParentRules(t *testing.T) {
	s := newTestStore(t)
	owner := uuid.New()
	f := mkfile(t, s, owner, nil, "file.txt", 1)

	_, err := s.CreateDirectory(context.Background(), entry.CreateDirectoryInput{OwnerID: owner, ParentID: &f.ID, Name: "x"})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	other := uuid.New()
	_, err = s.CreateDirectory(context.Background(), entry.CreateDirectoryInput{OwnerID: other, ParentID: &f.ID, Name: "x"})
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	missing := uuid.New()
	_, err = s.CreateDirectory(context.Background(), entry.CreateDirectoryInput{OwnerID: owner, ParentID: &missing, Name: "x"})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestRename(t *testing.T) {
	s := newTestStore(t)
	owner := uuid.New()
	a := mkfile(t, s, owner, nil, "a.txt", 1)
	mkfile(t, s, owner, nil, "b.txt", 1)

	t.Run("conflict with sibling", func(t *testing.T) {
		_, err := s.Rename(context.Background(), owner, a.ID, "b.txt")
		assert.True(t, errors.Is(err, apperrors.ErrNameConflict))
	})

	t.Run("same name is a no-op", func(t *testing.T) {
		e, err := s.Rename(context.Background(), owner, a.ID, "a.txt")
		require.NoError(t, err)
		assert.Equal(t, "a.txt", e.Name)
	})

	t.Run("renames", func(t *testing.T) {
		e, err := s.Rename(context.Background(), owner, a.ID, "c.txt")
		require.NoError(t, err)
		assert.Equal(t, "c.txt", e.Name)

		got, err := s.Get(context.Background(), owner, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "c.txt", got.Name)
	})

	t.Run("other owner", func(t *testing.T) {
		_, err := s.Rename(context.Background(), uuid.New(), a.ID, "d.txt")
		assert.True(t, errors.Is(err, apperrors.ErrForbidden))
	})

	t.Run("root is fixed", func(t *testing.T) {
		root, err := s.EnsureRoot(context.Background(), nil, owner)
		require.NoError(t, err)
		_, err = s.Rename(context.Background(), owner, root.ID, "home")
		assert.True(t, errors.Is(err, apperrors.ErrInvalidState))
	})
}

func TestMove(t *testing.T) {
	s := newTestStore(t)
	owner := uuid.New()
	a := mkdir(t, s, owner, nil, "A")
	b := mkdir(t, s, owner, &a.ID, "B")
	c := mkdir(t, s, owner, &b.ID, "C")
	other := mkdir(t, s, owner, nil, "Other")

	t.Run("into descendant is a cycle", func(t *testing.T) {
		_, err := s.Move(context.Background(), owner, a.ID, c.ID)
		assert.True(t, errors.Is(err, apperrors.ErrCycleDetected))

		got, err := s.Get(context.Background(), owner, a.ID)
		require.NoError(t, err)
		root, err := s.EnsureRoot(context.Background(), nil, owner)
		require.NoError(t, err)
		assert.Equal(t, root.ID, *got.ParentID)
	})

	t.Run("into itself is a cycle", func(t *testing.T) {
		_, err := s.Move(context.Background(), owner, a.ID, a.ID)
		assert.True(t, errors.Is(err, apperrors.ErrCycleDetected))
	})

	t.Run("round trip restores parent", func(t *testing.T) {
		moved, err := s.Move(context.Background(), owner, b.ID, other.ID)
		require.NoError(t, err)
		assert.Equal(t, other.ID, *moved.ParentID)

		back, err := s.Move(context.Background(), owner, b.ID, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a.ID, *back.ParentID)

		// C follows its parent implicitly.
		gotC, err := s.Get(context.Background(), owner, c.ID)
		require.NoError(t, err)
		assert.Equal(t, b.ID, *gotC.ParentID)
	})

	t.Run("name conflict at destination", func(t *testing.T) {
		mkdir(t, s, owner, &other.ID, "B")
		_, err := s.Move(context.Background(), owner, b.ID, other.ID)
		assert.True(t, errors.Is(err, apperrors.ErrNameConflict))
	})

	t.Run("into a file", func(t *testing.T) {
		f := mkfile(t, s, owner, nil, "f.txt", 1)
		_, err := s.Move(context.Background(), owner, c.ID, f.ID)
		assert.True(t, errors.Is(err, apperrors.ErrValidation))
	})
}

func TestListChildren_ActiveByDefault(t *testing.T) {
	s := newTestStore(t)
	owner := uuid.New()
	mkdir(t, s, owner, nil, "b-dir")
	mkfile(t, s, owner, nil, "a.txt", 1)

	children, err := s.ListChildren(context.Background(), owner, nil, entry.ListOptions{})
	require.NoError(t, err)
	require.Len(t, children, 2)
	// Folders sort before files.
	assert.Equal(t, "b-dir", children[0].Name)
	assert.Equal(t, "a.txt", children[1].Name)
}

func TestGetRecursive(t *testing.T) {
	s := newTestStore(t)
	owner := uuid.New()
	a := mkdir(t, s, owner, nil, "A")
	b := mkdir(t, s, owner, &a.ID, "B")
	mkfile(t, s, owner, &b.ID, "deep.txt", 3)
	mkfile(t, s, owner, &a.ID, "top.txt", 1)

	n, err := s.GetRecursive(context.Background(), owner, &a.ID, entry.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, "A", n.Value.Name)
	require.Len(t, n.Children, 2)
	assert.Equal(t, "B", n.Children[0].Value.Name)
	require.Len(t, n.Children[0].Children, 1)
	assert.Equal(t, "deep.txt", n.Children[0].Children[0].Value.Name)
}

func TestCreate_DepthBound(t *testing.T) {
	s := NewStore(memory.New(), 2, zerolog.Nop())
	owner := uuid.New()
	a := mkdir(t, s, owner, nil, "1")
	b := mkdir(t, s, owner, &a.ID, "2")

	// root(0) > 1 > 2 > 3 would put "3" three levels below root.
	_, err := s.CreateDirectory(context.Background(), entry.CreateDirectoryInput{OwnerID: owner, ParentID: &b.ID, Name: "3"})
	assert.True(t, errors.Is(err, apperrors.ErrMaxDepthExceeded))

	root, err := s.GetRecursive(context.Background(), owner, nil, entry.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, root.Children, 1)
}

func TestMove_DepthBound(t *testing.T) {
	s := NewStore(memory.New(), 3, zerolog.Nop())
	owner := uuid.New()
	a := mkdir(t, s, owner, nil, "a")
	b := mkdir(t, s, owner, &a.ID, "b")
	c := mkdir(t, s, owner, nil, "c")
	mkdir(t, s, owner, &c.ID, "d")

	// c has height 1; under b (depth 2) its child would sit at depth 4.
	_, err := s.Move(context.Background(), owner, c.ID, b.ID)
	assert.True(t, errors.Is(err, apperrors.ErrMaxDepthExceeded))

	got, err := s.Get(context.Background(), owner, c.ID)
	require.NoError(t, err)
	assert.NotEqual(t, b.ID, *got.ParentID)

	// Under a (depth 1) it fits exactly.
	_, err = s.Move(context.Background(), owner, c.ID, a.ID)
	assert.NoError(t, err)
}
