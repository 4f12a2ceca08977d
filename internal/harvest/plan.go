package harvest

import (
	"sort"
	"strings"

	"github.com/haierkeys/harvester-service/internal/domain"
	"github.com/haierkeys/harvester-service/pkg/logger"

	"go.uber.org/zap"
)

// Candidate 待下载条目及其序号
type Candidate struct {
	File  *RemoteFile
	Seqno *int64
}

// Plan is the outcome of filtering a listing against a config.
// Plan 对列举结果按文件名与序号过滤后的结果
type Plan struct {
	// Fetch 待下载条目，按序号升序、文件名升序
	Fetch []Candidate
	// Entries 所有条目的预览，按文件名降序
	Entries []domain.TestEntry
}

func filesPattern(cfg *domain.HarvesterConfig) string {
	switch cfg.Protocol {
	case domain.ProtocolFTP:
		if cfg.Ftp != nil {
			return cfg.Ftp.FilesPattern
		}
	case domain.ProtocolSFTP:
		if cfg.SFtp != nil {
			return cfg.SFtp.FilesPattern
		}
	}
	return ""
}

// BuildPlan applies the file name pattern and the seqno watermark to a listing.
// Files whose seqno cannot be extracted are skipped and reported as SKIPPED_BY_SEQNO.
func BuildPlan(cfg *domain.HarvesterConfig, files []*RemoteFile, lg *zap.Logger) (*Plan, error) {
	if lg == nil {
		lg = zap.NewNop()
	}
	glob, err := CompileGlob(filesPattern(cfg))
	if err != nil {
		return nil, err
	}
	matcher := NewSeqnoMatcher(cfg.SeqnoExtract, cfg.Seqno)

	plan := &Plan{}
	for _, f := range files {
		if strings.TrimSpace(f.Name) == "" {
			continue
		}
		if !glob.Match(f.Name) {
			plan.Entries = append(plan.Entries, domain.TestEntry{Filename: f.Name, Status: domain.StatusSkippedByFilename})
			continue
		}

		fetch, seqno, err := matcher.ShouldFetch(f.Name)
		if err != nil {
			lg.Warn("cannot extract seqno, skipping file",
				zap.Int64(logger.FieldConfigID, cfg.ID),
				zap.String(logger.FieldFile, f.Name),
				zap.String("seqnoExtract", cfg.SeqnoExtract),
				zap.Error(err))
		}
		status := domain.StatusSkippedBySeqno
		if fetch {
			status = domain.StatusAwaitingDownload
			plan.Fetch = append(plan.Fetch, Candidate{File: f, Seqno: seqno})
		}
		plan.Entries = append(plan.Entries, domain.TestEntry{Filename: f.Name, Status: status, Seqno: seqno})
	}

	sort.SliceStable(plan.Fetch, func(i, j int) bool {
		a, b := plan.Fetch[i], plan.Fetch[j]
		switch {
		case a.Seqno != nil && b.Seqno != nil && *a.Seqno != *b.Seqno:
			return *a.Seqno < *b.Seqno
		case a.Seqno == nil && b.Seqno != nil:
			return true
		case a.Seqno != nil && b.Seqno == nil:
			return false
		}
		return a.File.Name < b.File.Name
	})
	sort.SliceStable(plan.Entries, func(i, j int) bool {
		return plan.Entries[i].Filename > plan.Entries[j].Filename
	})
	return plan, nil
}

// TotalBytes 待下载条目的已知总大小，未知大小的条目不计入
func (p *Plan) TotalBytes() int64 {
	var total int64
	for _, c := range p.Fetch {
		if c.File.Size > 0 {
			total += c.File.Size
		}
	}
	return total
}
