package quotareset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminalens/quotareset/pkg/quotareset"
)

func TestUser_Provisioned(t *testing.T) {
	count := int64(0)

	u := quotareset.User{ID: "a", UsageCount: &count}
	assert.True(t, u.Provisioned(), "zero counter still counts as provisioned")

	u = quotareset.User{ID: "b"}
	assert.False(t, u.Provisioned(), "missing counter means never provisioned")
}

func TestOutcome_Completed(t *testing.T) {
	assert.True(t, quotareset.Outcome{Status: quotareset.StatusCompleted}.Completed())
	assert.False(t, quotareset.Outcome{Status: quotareset.StatusFailed}.Completed())
	assert.False(t, quotareset.Outcome{}.Completed(), "zero value is not completed")
}

func TestKinds_Canonical(t *testing.T) {
	require.Len(t, quotareset.Kinds, 3)
	assert.Equal(t, quotareset.KindDaily, quotareset.Kinds[0])
	assert.Equal(t, quotareset.KindWeekly, quotareset.Kinds[1])
	assert.Equal(t, quotareset.KindMonthly, quotareset.Kinds[2])

	// The fan-out pseudo-kind is not schedulable
	for _, k := range quotareset.Kinds {
		assert.NotEqual(t, quotareset.KindAll, string(k))
	}
}
