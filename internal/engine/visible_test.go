package engine

import (
	"testing"

	"github.com/BearBump/TripFlow/internal/models"
	"github.com/stretchr/testify/require"
)

func TestVisible(t *testing.T) {
	acts := expanded(
		activity("a", models.CategoryUnloading, transport(1), "Paris"),
		activity("b1", models.CategoryLoading, transport(2), "Lyon"),
		activity("b2", models.CategoryLoading, transport(3), "Lyon"),
		activity("c", models.CategoryUnloading, transport(4), "Nice"),
	)

	require.Equal(t, uidsOf(acts), uidsOf(Visible(acts, nil)))
	require.Equal(t, []string{"a", "b1/b2", "c"}, uidsOf(Visible(acts, NewCollapseState("b1/b2"))))
	require.Equal(t, uidsOf(acts), uidsOf(Visible(acts, NewCollapseState("unknown"))))
}
