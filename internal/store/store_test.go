package store

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	redis "github.com/redis/go-redis/v9"

	"reflexduel/internal/domain"
)

func sampleState() *domain.State {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	deadline := now.Add(3 * time.Second)
	st := domain.NewState()
	st.Queue = []string{"carol"}
	st.Invites = []domain.Invite{{ID: "i1", From: "a", To: "Dan", CreatedAt: now}}
	st.Matches["m1"] = domain.Match{
		ID:      "m1",
		Players: [2]string{"a", "b"},
		Round:   2,
		Score:   -1,
		Current: domain.RoundState{
			Target:        domain.Paper,
			StartedAt:     now,
			FirstAnswerAt: &now,
			Deadline:      &deadline,
			Answers:       map[string]domain.Answer{"a": {Choice: domain.Rock, At: now}},
		},
		CreatedAt: now,
	}
	st.Logs["a"] = []domain.LogEntry{{MatchID: "m1", Round: 1, Target: domain.Rock, Choice: domain.Paper, ReactionMs: 120, Outcome: domain.OutcomeWin, Timestamp: now}}
	return st
}

func checkState(t *testing.T, got *domain.State) {
	t.Helper()
	m, ok := got.Matches["m1"]
	if !ok {
		t.Fatalf("match missing: %+v", got.Matches)
	}
	if m.Score != -1 || m.Round != 2 || m.Current.Deadline == nil || m.Current.Answers["a"].Choice != domain.Rock {
		t.Fatalf("match = %+v", m)
	}
	if len(got.Queue) != 1 || len(got.Invites) != 1 || len(got.Logs["a"]) != 1 {
		t.Fatalf("collections = %+v", got)
	}
	if got.Archives == nil || got.Accounts == nil {
		t.Fatalf("nil collections after load")
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}

	empty, err := s.Load(ctx)
	if err != nil || len(empty.Matches) != 0 || empty.Logs == nil {
		t.Fatalf("missing file should load as empty state: %+v, %v", empty, err)
	}

	if err := s.Save(ctx, sampleState()); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	checkState(t, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestFileStoreConcurrentWritersNeverTear(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			st := sampleState()
			st.Queue = append(st.Queue, string(rune('a'+i)))
			if err := s.Save(ctx, st); err != nil {
				t.Error(err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := s.Load(ctx); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	checkState(t, &domain.State{
		Accounts: got.Accounts,
		Queue:    got.Queue[:1],
		Invites:  got.Invites,
		Matches:  got.Matches,
		Logs:     got.Logs,
		Archives: got.Archives,
	})
}

func TestFileStoreCancelledContext(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Save(ctx, sampleState()); err == nil {
		t.Fatalf("save with cancelled context succeeded")
	}
	if _, err := os.Stat(s.Path()); !os.IsNotExist(err) {
		t.Fatalf("cancelled save touched the target: %v", err)
	}
}

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeObjects) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeObjects) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, nil
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	api := &fakeObjects{objects: map[string][]byte{}}
	s := newS3Store(api, "bucket", "reflexduel/state.json")

	empty, err := s.Load(ctx)
	if err != nil || len(empty.Matches) != 0 {
		t.Fatalf("missing object should load as empty state: %v", err)
	}
	if err := s.Save(ctx, sampleState()); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	checkState(t, got)
	if _, ok := api.objects["bucket/reflexduel/state.json"]; !ok {
		t.Fatalf("object written under the wrong key: %v", api.objects)
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	key := "reflexduel:test:" + t.Name()
	t.Cleanup(func() {
		rdb.Del(context.Background(), key)
		_ = rdb.Close()
	})

	s := NewRedisStore(rdb, key)
	if err := s.Ping(ctx); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	if err := s.Save(ctx, sampleState()); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	checkState(t, got)
}
