package detection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testRosterMember(id uint64, username string, isBot bool) RosterMember {
	created := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	return RosterMember{
		ID:        id,
		Username:  username,
		CreatedAt: created.Add(time.Duration(id) * time.Hour),
		JoinedAt:  created.AddDate(0, 6, 0),
		IsBot:     isBot,
	}
}

func newTestFetcher(source RosterSource) *Fetcher {
	f := NewFetcher(source, zap.NewNop())
	f.retryOpts = fastRetry()

	return f
}

func TestFetcherConvertsRoster(t *testing.T) {
	t.Parallel()

	source := &fakeRoster{members: []RosterMember{
		testRosterMember(1, "fox", false),
		testRosterMember(2, "wolf", false),
		testRosterMember(3, "mod-bot", true),
	}}

	now := time.Date(2025, 8, 10, 12, 0, 0, 0, time.UTC)

	result, err := newTestFetcher(source).Fetch(t.Context(), 42, now)
	require.NoError(t, err)

	assert.Len(t, result.Members, 3)
	assert.Equal(t, 1, result.BotsSkipped)
	assert.Equal(t, uint64(42), result.Members[0].GuildID)
	assert.Equal(t, "fox", result.Members[0].Username)
	assert.Equal(t, now, result.Members[0].LastUpdated)
}

func TestFetcherRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	source := &fakeRoster{
		members: []RosterMember{
			testRosterMember(1, "fox", false),
			testRosterMember(2, "wolf", false),
		},
		failures: 2,
	}

	result, err := newTestFetcher(source).Fetch(t.Context(), 42, time.Now().UTC())
	require.NoError(t, err)

	assert.Equal(t, 3, source.calls)
	assert.Len(t, result.Members, 2)
}

func TestFetcherExhaustsRetries(t *testing.T) {
	t.Parallel()

	source := &fakeRoster{failures: 10}

	_, err := newTestFetcher(source).Fetch(t.Context(), 42, time.Now().UTC())
	require.ErrorIs(t, err, ErrTransportFailure)
	assert.Equal(t, 4, source.calls)
}

func TestFetcherPermissionErrorNotRetried(t *testing.T) {
	t.Parallel()

	source := &fakeRoster{err: ErrPermissionDenied}

	_, err := newTestFetcher(source).Fetch(t.Context(), 42, time.Now().UTC())
	require.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, 1, source.calls)
}

func TestFetcherRejectsTinyGuilds(t *testing.T) {
	t.Parallel()

	source := &fakeRoster{members: []RosterMember{
		testRosterMember(1, "fox", false),
	}}

	_, err := newTestFetcher(source).Fetch(t.Context(), 42, time.Now().UTC())
	require.ErrorIs(t, err, ErrNotEnoughMembers)
}

func TestFetcherKeepsAllBotRosters(t *testing.T) {
	t.Parallel()

	source := &fakeRoster{members: []RosterMember{
		testRosterMember(1, "mod-bot", true),
		testRosterMember(2, "music-bot", true),
	}}

	result, err := newTestFetcher(source).Fetch(t.Context(), 42, time.Now().UTC())
	require.NoError(t, err)
	assert.Len(t, result.Members, 2)
	assert.Equal(t, 2, result.BotsSkipped)
}
