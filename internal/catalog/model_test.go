package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTargetPaths(t *testing.T) {
	assert.Equal(t, "catalog/product/view/id/7", ProductTargetPath(7))
	assert.Equal(t, "catalog/product/view/id/7/category/12", ProductCategoryTargetPath(7, 12))
}

func TestPlaceholderAllocator(t *testing.T) {
	var a PlaceholderAllocator
	assert.Equal(t, int64(-1), a.Next())
	assert.Equal(t, int64(-2), a.Next())
	assert.True(t, ProductRef{EntityID: -2}.IsPlaceholder())
	assert.False(t, ProductRef{EntityID: 3}.IsPlaceholder())
}

func TestSameContentIgnoresID(t *testing.T) {
	a := URLRewrite{ID: 1, RequestPath: "a.html", Metadata: CategoryMetadata(3)}
	b := URLRewrite{ID: 9, RequestPath: "a.html", Metadata: CategoryMetadata(3)}
	assert.True(t, a.SameContent(b))

	b.Metadata = Metadata{}
	assert.False(t, a.SameContent(b))
}

func TestVisibility(t *testing.T) {
	assert.False(t, VisibilityNotVisibleIndividually.Visible())
	assert.True(t, VisibilityBoth.Visible())
	assert.True(t, VisibilityUnset.Visible())
}
