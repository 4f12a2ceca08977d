package harvest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/haierkeys/harvester-service/internal/domain"
	"github.com/haierkeys/harvester-service/pkg/storage/local_fs"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	files   []*RemoteFile
	listErr error
	closed  bool
}

func (l *fakeLister) List(context.Context) ([]*RemoteFile, error) { return l.files, l.listErr }
func (l *fakeLister) Close() error                               { l.closed = true; return nil }

type fakeFactory struct {
	lister *fakeLister
}

func (f *fakeFactory) NewLister(context.Context, *domain.HarvesterConfig) (Lister, error) {
	return f.lister, nil
}

type fakeStore struct {
	mu        sync.Mutex
	commits   []int64
	harvested *time.Time
}

func (s *fakeStore) CommitSeqno(_ context.Context, _ int64, seqno int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits = append(s.commits, seqno)
	return nil
}

func (s *fakeStore) MarkHarvested(_ context.Context, _ int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.harvested = &at
	return nil
}

// memSink 内存输出端，onSend 可拦截数据文件的写入
type memSink struct {
	mu     sync.Mutex
	order  []string
	files  map[string][]byte
	onSend func(ctx context.Context, key string, r io.Reader) error
}

func newMemSink() *memSink {
	return &memSink{files: make(map[string][]byte)}
}

func (s *memSink) SendFile(ctx context.Context, key string, r io.Reader, _ string, _ time.Time) (string, error) {
	if s.onSend != nil {
		if err := s.onSend(ctx, key, r); err != nil {
			return "", err
		}
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return s.SendContent(ctx, key, b, time.Now())
}

func (s *memSink) SendContent(_ context.Context, key string, content []byte, _ time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = append(s.order, key)
	s.files[key] = content
	return key, nil
}

func (s *memSink) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, key)
	return nil
}

func memFile(name, content string) *RemoteFile {
	return NewRemoteFile(name, int64(len(content)), time.Time{}, func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(content)), nil
	})
}

func ftpHarvester() *domain.HarvesterConfig {
	return &domain.HarvesterConfig{
		ID:           7,
		Protocol:     domain.ProtocolFTP,
		Name:         "bibliotek",
		Schedule:     "*/5 * * * *",
		Transfile:    "b=databroendpr3,t=lin,c=latin-1,o=marc2",
		Seqno:        4622,
		SeqnoExtract: "2-3,6-7",
		Agency:       "010100",
		Enabled:      true,
		Ftp:          &domain.FtpPayload{Host: "ftp.example.org", Dir: "/out", FilesPattern: "v*.xml"},
	}
}

func workedExampleFiles() []*RemoteFile {
	return []*RemoteFile{
		memFile("v46.i25.xml", "record 25"),
		memFile("v46.i23.xml", "record 23"),
		memFile("readme.txt", "not a data file"),
		memFile("v46.i24.xml", "record 24"),
		memFile("v46.i22.xml", "record 22"),
	}
}

func TestRunner_WorkedExample(t *testing.T) {
	store := &fakeStore{}
	sink := newMemSink()
	lister := &fakeLister{files: workedExampleFiles()}
	r := NewRunner(store, sink, &fakeFactory{lister: lister}, nil)

	tracker := NewTracker("run-1", 7)
	run, err := r.Run(context.Background(), ftpHarvester(), tracker, domain.TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, domain.RunCompleted, run.State)
	assert.Equal(t, []int64{4623, 4624, 4625}, store.commits)
	assert.EqualValues(t, 4622, run.SeqnoBefore)
	assert.EqualValues(t, 4625, run.SeqnoAfter)
	assert.Equal(t, 3, run.FilesDone)
	assert.NotNil(t, store.harvested)
	assert.True(t, lister.closed)

	assert.Equal(t, []string{
		"010100.v46.i23.xml", "010100.v46.i23.xml.harvester.trans",
		"010100.v46.i24.xml", "010100.v46.i24.xml.harvester.trans",
		"010100.v46.i25.xml", "010100.v46.i25.xml.harvester.trans",
	}, sink.order)
	assert.Equal(t, "record 24", string(sink.files["010100.v46.i24.xml"]))
	assert.Equal(t,
		"b=databroendpr3,t=lin,c=latin-1,o=marc2,f=010100.v46.i24.xml\nslut",
		string(sink.files["010100.v46.i24.xml.harvester.trans"]))

	snap := tracker.Snapshot()
	assert.False(t, snap.Running)
	assert.Equal(t, 100, snap.Percentage)
	assert.True(t, strings.HasPrefix(snap.Message, "Done in "), snap.Message)
}

func TestRunner_Test(t *testing.T) {
	store := &fakeStore{}
	sink := newMemSink()
	r := NewRunner(store, sink, &fakeFactory{lister: &fakeLister{files: workedExampleFiles()}}, nil)

	entries, err := r.Test(context.Background(), ftpHarvester())
	require.NoError(t, err)
	require.Len(t, entries, 5)

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Filename
	}
	assert.Equal(t, []string{"v46.i25.xml", "v46.i24.xml", "v46.i23.xml", "v46.i22.xml", "readme.txt"}, names)

	assert.Equal(t, domain.StatusAwaitingDownload, entries[0].Status)
	assert.EqualValues(t, 4625, *entries[0].Seqno)
	assert.Equal(t, domain.StatusSkippedBySeqno, entries[3].Status)
	assert.EqualValues(t, 4622, *entries[3].Seqno)
	assert.Equal(t, domain.StatusSkippedByFilename, entries[4].Status)
	assert.Nil(t, entries[4].Seqno)

	// 预览不修改任何状态
	assert.Empty(t, store.commits)
	assert.Nil(t, store.harvested)
	assert.Empty(t, sink.order)

	again, err := r.Test(context.Background(), ftpHarvester())
	require.NoError(t, err)
	assert.Equal(t, entries, again)
}

func TestRunner_Abort(t *testing.T) {
	store := &fakeStore{}
	sink := newMemSink()
	tracker := NewTracker("run-abort", 7)
	sink.onSend = func(ctx context.Context, key string, r io.Reader) error {
		if key != "010100.v46.i24.xml" {
			return nil
		}
		require.True(t, tracker.Abort())
		<-ctx.Done()
		return ctx.Err()
	}
	r := NewRunner(store, sink, &fakeFactory{lister: &fakeLister{files: workedExampleFiles()}}, nil)

	run, err := r.Run(context.Background(), ftpHarvester(), tracker, domain.TriggerManual)
	assert.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, domain.RunAborted, run.State)
	assert.Equal(t, []int64{4623}, store.commits, "the in-flight entry must not commit")
	assert.EqualValues(t, 4623, run.SeqnoAfter)
	assert.Nil(t, store.harvested)
	assert.NotContains(t, sink.files, "010100.v46.i24.xml.harvester.trans")

	snap := tracker.Snapshot()
	assert.False(t, snap.Running)
	assert.Equal(t, "Aborted", snap.Message)
	assert.False(t, tracker.Abort(), "finished runs cannot be aborted")
}

// blockingLister 列目录时阻塞，直到 ctx 结束
type blockingLister struct {
	started chan struct{}
}

func (l *blockingLister) List(ctx context.Context) ([]*RemoteFile, error) {
	close(l.started)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(10 * time.Second):
		return nil, nil
	}
}

func (l *blockingLister) Close() error { return nil }

type listerFunc func(ctx context.Context, cfg *domain.HarvesterConfig) (Lister, error)

func (f listerFunc) NewLister(ctx context.Context, cfg *domain.HarvesterConfig) (Lister, error) {
	return f(ctx, cfg)
}

func TestRunner_AbortWhileListing(t *testing.T) {
	store := &fakeStore{}
	lister := &blockingLister{started: make(chan struct{})}
	factory := listerFunc(func(context.Context, *domain.HarvesterConfig) (Lister, error) { return lister, nil })
	r := NewRunner(store, newMemSink(), factory, nil)
	tracker := NewTracker("run-abort-list", 7)

	go func() {
		<-lister.started
		assert.Equal(t, domain.RunListing, tracker.State())
		assert.True(t, tracker.Abort())
	}()

	start := time.Now()
	run, err := r.Run(context.Background(), ftpHarvester(), tracker, domain.TriggerManual)
	assert.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, domain.RunAborted, run.State)
	assert.Less(t, time.Since(start), 5*time.Second, "abort cancels the listing")
	assert.Empty(t, store.commits)
}

func TestRunner_AbortWhileConnecting(t *testing.T) {
	tracker := NewTracker("run-abort-dial", 7)
	factory := listerFunc(func(ctx context.Context, _ *domain.HarvesterConfig) (Lister, error) {
		require.True(t, tracker.Abort())
		<-ctx.Done()
		return nil, ctx.Err()
	})
	r := NewRunner(&fakeStore{}, newMemSink(), factory, nil)

	run, err := r.Run(context.Background(), ftpHarvester(), tracker, domain.TriggerManual)
	assert.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, domain.RunAborted, run.State)
	assert.False(t, IsTransport(err))
}

func TestRunner_RemoteNameReducedToBase(t *testing.T) {
	cfg := ftpHarvester()
	cfg.SeqnoExtract = ""
	cfg.Ftp.FilesPattern = "*"

	sink := newMemSink()
	files := []*RemoteFile{memFile("../../v46.i23.xml", "record 23")}
	r := NewRunner(&fakeStore{}, sink, &fakeFactory{lister: &fakeLister{files: files}}, nil)

	run, err := r.Run(context.Background(), cfg, NewTracker("run-name", 7), domain.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, run.State)
	assert.Equal(t, []string{"010100.v46.i23.xml", "010100.v46.i23.xml.harvester.trans"}, sink.order)
	assert.Contains(t, string(sink.files["010100.v46.i23.xml.harvester.trans"]), ",f=010100.v46.i23.xml\n")

	sink = newMemSink()
	r = NewRunner(&fakeStore{}, sink, &fakeFactory{lister: &fakeLister{files: []*RemoteFile{memFile("..", "x")}}}, nil)
	run, err = r.Run(context.Background(), cfg, NewTracker("run-dots", 7), domain.TriggerManual)
	assert.ErrorIs(t, err, ErrUnsafeName)
	assert.Equal(t, domain.RunFailed, run.State)
	assert.Empty(t, sink.order)
}

func TestRunner_ContentDispositionStaysInSavePath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="../escaped.xml"`)
		fmt.Fprint(w, "<records/>")
	}))
	defer srv.Close()

	root := t.TempDir()
	out := filepath.Join(root, "out")
	sink, err := local_fs.NewClient(&local_fs.Config{SavePath: out})
	require.NoError(t, err)
	r := NewRunner(&fakeStore{}, sink, newTestTransports(t), nil)

	run, err := r.Run(context.Background(), httpHarvester(srv.URL+"/export"), NewTracker("run-cd", 1), domain.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, run.State)
	assert.NoFileExists(t, filepath.Join(root, "escaped.xml"))
	assert.FileExists(t, filepath.Join(out, "escaped.xml"))
}

func TestRunner_FailedEntryStopsRun(t *testing.T) {
	store := &fakeStore{}
	files := workedExampleFiles()
	files[3] = NewRemoteFile("v46.i24.xml", 10, time.Time{}, func(context.Context) (io.ReadCloser, error) {
		return nil, errors.New("connection reset")
	})
	r := NewRunner(store, newMemSink(), &fakeFactory{lister: &fakeLister{files: files}}, nil)

	run, err := r.Run(context.Background(), ftpHarvester(), NewTracker("run-fail", 7), domain.TriggerSchedule)
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.Equal(t, domain.RunFailed, run.State)
	assert.Equal(t, []int64{4623}, store.commits)
	assert.Contains(t, run.Message, "connection reset")
	assert.Nil(t, store.harvested)
}

func TestRunner_ListFailure(t *testing.T) {
	r := NewRunner(&fakeStore{}, newMemSink(), &fakeFactory{lister: &fakeLister{listErr: errors.New("timeout")}}, nil)
	run, err := r.Run(context.Background(), ftpHarvester(), NewTracker("run-list", 7), domain.TriggerSchedule)
	assert.True(t, IsTransport(err))
	assert.Equal(t, domain.RunFailed, run.State)
}

func TestRunner_GzipWithoutSeqno(t *testing.T) {
	store := &fakeStore{}
	sink := newMemSink()
	cfg := &domain.HarvesterConfig{
		ID:        3,
		Protocol:  domain.ProtocolHTTP,
		Name:      "feed",
		Schedule:  "0 3 * * *",
		Transfile: "b=databroendpr3,t=xml",
		Agency:    "870970",
		Gzip:      true,
		Http:      &domain.HttpPayload{URL: "http://example.org/dump.xml"},
	}
	payload := strings.Repeat("<record/>", 200)
	r := NewRunner(store, sink, &fakeFactory{lister: &fakeLister{files: []*RemoteFile{memFile("dump.xml", payload)}}}, nil,
		WithAppID("saturn"))

	run, err := r.Run(context.Background(), cfg, NewTracker("run-gz", 3), domain.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, run.State)
	assert.Empty(t, store.commits)
	assert.NotNil(t, store.harvested)
	assert.EqualValues(t, len(payload), run.Bytes)

	require.Equal(t, []string{"dump.xml.gz", "dump.xml.saturn.trans"}, sink.order)
	zr, err := gzip.NewReader(bytes.NewReader(sink.files["dump.xml.gz"]))
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, payload, string(plain))
	assert.Equal(t, "b=databroendpr3,t=xml,f=dump.xml.gz\nslut", string(sink.files["dump.xml.saturn.trans"]))
}

func TestRunner_NoSink(t *testing.T) {
	r := NewRunner(&fakeStore{}, nil, &fakeFactory{lister: &fakeLister{}}, nil)
	run, err := r.Run(context.Background(), ftpHarvester(), NewTracker("run-nosink", 7), domain.TriggerManual)
	assert.ErrorIs(t, err, ErrNoSink)
	assert.Equal(t, domain.RunFailed, run.State)
}

func TestTracker_Message(t *testing.T) {
	tr := NewTracker("r", 1)
	assert.Equal(t, "Listing", tr.Message())
	assert.True(t, tr.Running())

	tr.setListed(2, 2000)
	tr.addBytes(1000)
	assert.Equal(t, "1.0 kB 50.0%", tr.Message())
	assert.Equal(t, 50, tr.Snapshot().Percentage)

	tr.setListed(4, 0)
	tr.fileDone()
	assert.InDelta(t, 25.0, tr.Percentage(), 0.001)

	tr.finish(domain.RunFailed, "boom")
	assert.Equal(t, "boom", tr.Message())
	assert.False(t, tr.Running())
}
