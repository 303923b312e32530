package infra

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Murasan201/entry-security-cam-pi/internal/domain"
)

// newTestCatalog creates an encrypted catalog in a temp directory.
func newTestCatalog(t *testing.T) (*SQLCipherCatalog, string) {
	t.Helper()
	dataDir := t.TempDir()
	key, err := GenerateKey()
	require.NoError(t, err)

	c, err := NewSQLCipherCatalog(dataDir, key)
	require.NoError(t, err)

	t.Cleanup(func() { c.Close() })
	return c, dataDir
}

func sampleRecording(id string, endedAt time.Time) domain.Recording {
	return domain.Recording{
		ID:         id,
		SessionID:  "session-" + id,
		Path:       "/media/pi/usb0/security_recordings/" + id,
		StartedAt:  endedAt.Add(-10 * time.Second),
		EndedAt:    endedAt,
		FrameCount: 300,
		SizeBytes:  1 << 20,
		Trigger:    "person",
	}
}

func TestSQLCipherCatalog_SaveAndList(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	require.NoError(t, c.Save(ctx, sampleRecording("a.mp4", base)))
	require.NoError(t, c.Save(ctx, sampleRecording("b.mp4", base.Add(time.Minute))))
	require.NoError(t, c.Save(ctx, sampleRecording("c.mp4", base.Add(2*time.Minute))))

	recs, err := c.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	// Newest first
	assert.Equal(t, "c.mp4", recs[0].ID)
	assert.Equal(t, "b.mp4", recs[1].ID)
	assert.Equal(t, "a.mp4", recs[2].ID)

	assert.Equal(t, "session-a.mp4", recs[2].SessionID)
	assert.Equal(t, 300, recs[2].FrameCount)
	assert.Equal(t, int64(1<<20), recs[2].SizeBytes)
	assert.Equal(t, "person", recs[2].Trigger)
	assert.True(t, recs[2].EndedAt.Equal(base))
}

func TestSQLCipherCatalog_ListRespectsLimit(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	base := time.Now().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		require.NoError(t, c.Save(ctx, sampleRecording(
			string(rune('a'+i))+".mp4", base.Add(time.Duration(i)*time.Minute))))
	}

	recs, err := c.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestSQLCipherCatalog_SaveReplacesSameID(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	rec := sampleRecording("dup.mp4", time.Now().Truncate(time.Second))
	require.NoError(t, c.Save(ctx, rec))

	rec.FrameCount = 999
	require.NoError(t, c.Save(ctx, rec))

	recs, err := c.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 999, recs[0].FrameCount)
}

func TestSQLCipherCatalog_ReopenWithSameKey(t *testing.T) {
	dataDir := t.TempDir()
	key, err := GenerateKey()
	require.NoError(t, err)

	c, err := NewSQLCipherCatalog(dataDir, key)
	require.NoError(t, err)
	require.NoError(t, c.Save(context.Background(), sampleRecording("keep.mp4", time.Now().Truncate(time.Second))))
	require.NoError(t, c.Close())

	reopened, err := NewSQLCipherCatalog(dataDir, key)
	require.NoError(t, err)
	defer reopened.Close()

	recs, err := reopened.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "keep.mp4", recs[0].ID)
}

func TestSQLCipherCatalog_EmptyList(t *testing.T) {
	c, _ := newTestCatalog(t)

	recs, err := c.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}
