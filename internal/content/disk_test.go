package content

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"greencredits/pkg/platform/sentinel"
)

type DiskStoreSuite struct {
	suite.Suite
	store *DiskStore
}

func TestDiskStoreSuite(t *testing.T) {
	suite.Run(t, new(DiskStoreSuite))
}

func (s *DiskStoreSuite) SetupTest() {
	store, err := NewDiskStore(s.T().TempDir())
	s.Require().NoError(err)
	s.store = store
}

func (s *DiskStoreSuite) TestPutGetDelete() {
	ctx := context.Background()

	ref, err := s.store.Put(ctx, "certificate.pdf", []byte("document bytes"))
	s.Require().NoError(err)
	s.NotEmpty(ref)

	data, err := s.store.Get(ctx, ref)
	s.Require().NoError(err)
	s.Equal([]byte("document bytes"), data)

	s.NoError(s.store.Delete(ctx, ref))
	_, err = s.store.Get(ctx, ref)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *DiskStoreSuite) TestReferencesAreGenerated() {
	ctx := context.Background()

	ref1, err := s.store.Put(ctx, "same.pdf", []byte("a"))
	s.Require().NoError(err)
	ref2, err := s.store.Put(ctx, "same.pdf", []byte("b"))
	s.Require().NoError(err)
	s.NotEqual(ref1, ref2, "identical names must not collide")

	// A hostile name contributes at most a harmless extension.
	ref3, err := s.store.Put(ctx, "../../etc/passwd", []byte("c"))
	s.Require().NoError(err)
	s.NotContains(ref3, "/")
	s.NotContains(ref3, "..")
}

func (s *DiskStoreSuite) TestGetJoinsOnlyTheBasename() {
	ctx := context.Background()

	ref, err := s.store.Put(ctx, "certificate.pdf", []byte("document bytes"))
	s.Require().NoError(err)

	data, err := s.store.Get(ctx, "ignored/prefix/"+ref)
	s.Require().NoError(err)
	s.Equal([]byte("document bytes"), data)
}

func (s *DiskStoreSuite) TestDeleteMissingIsIdempotent() {
	s.NoError(s.store.Delete(context.Background(), "never-existed"))
}
