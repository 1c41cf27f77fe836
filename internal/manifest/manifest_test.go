// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package manifest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlehane/sdkdump/pkg/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndSeen(t *testing.T) {
	s := testStore(t)

	runID, err := s.BeginRun(types.DumpContext{
		Platform: types.PlatformSimulator,
		Mode:     types.ModeSimulator,
		Runtime:  types.SimRuntime{Version: "17.4"},
		Started:  time.Now(),
	})
	require.NoError(t, err)

	require.NoError(t, s.RecordImage(runID, "Frameworks/Foo.framework", "framework", 42))

	seen, err := s.Seen("Frameworks/Foo.framework")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = s.Seen("Frameworks/Bar.framework")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRecordImageUpserts(t *testing.T) {
	s := testStore(t)

	runID, err := s.BeginRun(types.DumpContext{Started: time.Now()})
	require.NoError(t, err)

	require.NoError(t, s.RecordImage(runID, "Frameworks/Foo.framework", "framework", 10))
	require.NoError(t, s.RecordImage(runID, "Frameworks/Foo.framework", "framework", 55))

	summary, err := s.Summary()
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, 1, summary[0].Images)
	assert.Equal(t, 55, summary[0].Headers)
}

func TestSummaryGroupsByKind(t *testing.T) {
	s := testStore(t)

	runID, err := s.BeginRun(types.DumpContext{Started: time.Now()})
	require.NoError(t, err)

	require.NoError(t, s.RecordImage(runID, "Frameworks/A.framework", "framework", 5))
	require.NoError(t, s.RecordImage(runID, "PrivateFrameworks/B.framework", "framework", 7))
	require.NoError(t, s.RecordImage(runID, "usr/lib/libobjc.dylib", "dylib", 3))

	summary, err := s.Summary()
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, "dylib", summary[0].Kind)
	assert.Equal(t, 3, summary[0].Headers)
	assert.Equal(t, "framework", summary[1].Kind)
	assert.Equal(t, 12, summary[1].Headers)
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()

	_, err = s2.Summary()
	assert.NoError(t, err)
}
