package classifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/jobfill/internal/clock"
	"github.com/v0xg/jobfill/internal/dom"
)

type scriptedSource struct {
	snaps []dom.Snapshot
	errs  []error
	calls int
}

func (s *scriptedSource) Snapshot(ctx context.Context) (dom.Snapshot, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return dom.Snapshot{}, s.errs[i]
	}
	if i >= len(s.snaps) {
		i = len(s.snaps) - 1
	}
	return s.snaps[i], nil
}

var (
	loadingSnap = dom.Snapshot{URL: "https://example.com/careers", HTML: "<body>Loading</body>"}

	renderedSnap = dom.Snapshot{
		URL:   "https://example.com/careers",
		Title: "Careers at Example",
		HTML:  "<html><body>" + filler + "</body></html>",
	}
)

func TestDetect_RetriesUntilRendered(t *testing.T) {
	src := &scriptedSource{snaps: []dom.Snapshot{loadingSnap, renderedSnap}}
	fake := &clock.Fake{}
	d := NewDetector(New(nil, nil), DetectorOptions{Clock: fake})

	res, err := d.Detect(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, res.IsMatch)
	assert.Equal(t, 2, src.calls)
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, fake.Sleeps())
}

func TestDetect_GivesUpAfterMaxAttempts(t *testing.T) {
	src := &scriptedSource{snaps: []dom.Snapshot{loadingSnap}}
	fake := &clock.Fake{}
	d := NewDetector(New(nil, nil), DetectorOptions{Clock: fake})

	res, err := d.Detect(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, res.IsMatch)
	assert.Equal(t, MethodMinimalContent, res.Method)
	assert.Equal(t, 3, src.calls)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 1500 * time.Millisecond}, fake.Sleeps())
}

func TestDetect_SnapshotErrorsCountAsAttempts(t *testing.T) {
	boom := errors.New("target closed")

	src := &scriptedSource{snaps: []dom.Snapshot{renderedSnap}, errs: []error{boom}}
	res, err := NewDetector(New(nil, nil), DetectorOptions{Clock: &clock.Fake{}}).Detect(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, res.IsMatch)
	assert.Equal(t, 2, src.calls)

	src = &scriptedSource{snaps: []dom.Snapshot{renderedSnap}, errs: []error{boom, boom, boom}}
	_, err = NewDetector(New(nil, nil), DetectorOptions{Clock: &clock.Fake{}}).Detect(context.Background(), src)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, src.calls)
}

func TestDetect_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &scriptedSource{snaps: []dom.Snapshot{loadingSnap}}
	_, err := NewDetector(New(nil, nil), DetectorOptions{Clock: &clock.Fake{}}).Detect(ctx, src)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, src.calls)
}
