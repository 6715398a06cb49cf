package detection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/require"
	"github.com/veilguard/doppel/internal/database/types"
	"github.com/veilguard/doppel/internal/setup/config"
	"github.com/veilguard/doppel/pkg/utils"
	"go.uber.org/zap"
)

var errConnReset = errors.New("connection reset by peer")

func intPtr(v int) *int { return &v }

// fastRetry keeps transport retries sub-millisecond in tests.
func fastRetry() utils.RetryOptions {
	return utils.RetryOptions{
		MaxElapsedTime:  time.Second,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		MaxRetries:      3,
	}
}

func testDetectionConfig() *config.Detection {
	return &config.Detection{
		ConfidenceThresholdDefault: 70,
		ReportLimit:                10,
		SampleChannelCap:           10,
		SampleMessageCap:           100,
		SampleWindowDays:           30,
		CacheTTLHours:              24,
	}
}

// fakeRoster streams a fixed member list, optionally failing the first
// few attempts.
type fakeRoster struct {
	members  []RosterMember
	failures int
	err      error
	calls    int
}

func (f *fakeRoster) StreamMembers(_ context.Context, _ uint64, each func(RosterMember) error) error {
	f.calls++

	if f.failures > 0 {
		f.failures--
		return errConnReset
	}

	if f.err != nil {
		return f.err
	}

	for _, member := range f.members {
		if err := each(member); err != nil {
			return err
		}
	}

	return nil
}

// fakeHistory serves canned channel history.
type fakeHistory struct {
	channels []Channel
	messages map[uint64][]Message
	failing  map[uint64]error
	listErr  error
}

func (f *fakeHistory) TextChannels(context.Context, uint64) ([]Channel, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}

	return f.channels, nil
}

func (f *fakeHistory) RecentMessages(_ context.Context, channelID uint64, since time.Time, limit int) ([]Message, error) {
	if err := f.failing[channelID]; err != nil {
		return nil, err
	}

	var out []Message
	for _, message := range f.messages[channelID] {
		if message.Timestamp.After(since) && len(out) < limit {
			out = append(out, message)
		}
	}

	return out, nil
}

// memoryStores is an in-memory stand-in for the Repository models.
type memoryStores struct {
	mu         sync.Mutex
	members    map[uint64][]*types.Member
	timings    map[uint64][]*types.MessageTiming
	groups     []*types.AnalysisResult
	cache      map[string][]byte
	replaceErr error
	loadErr    error
}

func newMemoryStores() *memoryStores {
	return &memoryStores{
		members: make(map[uint64][]*types.Member),
		timings: make(map[uint64][]*types.MessageTiming),
		cache:   make(map[string][]byte),
	}
}

func (m *memoryStores) ReplaceGuildMembers(
	_ context.Context, guildID uint64, members []*types.Member, timings []*types.MessageTiming,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.replaceErr != nil {
		return m.replaceErr
	}

	m.members[guildID] = members
	m.timings[guildID] = timings

	return nil
}

func (m *memoryStores) GetGuildMembers(_ context.Context, guildID uint64) ([]*types.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loadErr != nil {
		return nil, m.loadErr
	}

	return m.members[guildID], nil
}

func (m *memoryStores) GetGuildTimings(_ context.Context, guildID uint64) (map[uint64][]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	timings := make(map[uint64][]time.Time)
	for _, row := range m.timings[guildID] {
		timings[row.MemberID] = append(timings[row.MemberID], row.MessageTimestamp)
	}

	return timings, nil
}

func (m *memoryStores) RecordGroup(_ context.Context, result *types.AnalysisResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.groups = append(m.groups, result)

	return nil
}

func (m *memoryStores) RecentGroups(
	_ context.Context, guildID uint64, _ time.Duration,
) ([]*types.AnalysisResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*types.AnalysisResult
	for _, group := range m.groups {
		if group.GuildID == guildID {
			out = append(out, group)
		}
	}

	return out, nil
}

func (m *memoryStores) Get(_ context.Context, guildID uint64, patternType string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	payload, ok := m.cache[cacheTestKey(guildID, patternType)]

	return payload, ok, nil
}

func (m *memoryStores) Put(_ context.Context, guildID uint64, patternType string, payload []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache[cacheTestKey(guildID, patternType)] = payload

	return nil
}

func cacheTestKey(guildID uint64, patternType string) string {
	return fmt.Sprintf("%d:%s", guildID, patternType)
}

// newTestLock spins up a miniredis-backed ScanLock.
func newTestLock(t *testing.T) *ScanLock {
	t.Helper()

	mr := miniredis.RunT(t)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return NewScanLock(client, zap.NewNop())
}
