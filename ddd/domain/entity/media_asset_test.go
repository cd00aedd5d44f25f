package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultStorageFolder(t *testing.T) {
	assert.Equal(t, "uploads/u1/a", NewMediaAsset("a", "uploads/u1/a.mp4", "").StorageFolder())
	assert.Equal(t, "uploads/u1/b", NewMediaAsset("b", "uploads/u1/b.mp4", "").StorageFolder())
	assert.Equal(t, "media/u1/m1", NewMediaAsset("m1", "media/u1/m1/original.mp4", "").StorageFolder())
	assert.Equal(t, "custom/dir", NewMediaAsset("m2", "media/u1/m2.mp4", "custom/dir").StorageFolder())
}

func TestClaims(t *testing.T) {
	a := NewMediaAsset("a", "uploads/u1/a.mp4", "")
	assert.True(t, a.Claims("uploads/u1/a.mp4"))
	assert.True(t, a.Claims("/uploads/u1/a.mp4"))
	assert.True(t, a.Claims("bucket/uploads/u1/a.mp4"))
	assert.False(t, a.Claims("uploads/u1/b.mp4"))
	assert.False(t, a.Claims("uploads/u1/xa.mp4"))

	folderOnly := NewMediaAsset("f", "", "uploads/u1/f")
	assert.True(t, folderOnly.Claims("uploads/u1/f/anything.mov"))
}
