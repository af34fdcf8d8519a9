package janitor

import (
	"context"
	"errors"
	"os"
	"path"
	"strings"

	"extcache/pkg/logger"
	"extcache/pkg/store"
)

const (
	conversationsDir = "conversations"
	dedupeNS         = "dedupe"
	dumpsNS          = "dumps"
	tempPrefix       = ".tmp-"
)

var messageNamespaces = []string{"config", "read", "unread"}

// Result tallies what a sweep removed, or would have removed in dry-run.
type Result struct {
	DedupeRecords int
	Dumps         int
	TempFiles     int
	Dirs          int
}

// RunOnce performs a single sweep over the whole cache tree.
func (j *Janitor) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	buckets, err := j.be.List(conversationsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return res, nil
		}
		return res, err
	}

	for _, b := range buckets {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !b.Dir || strings.HasPrefix(b.Name, ".") {
			continue
		}
		bucketDir := path.Join(conversationsDir, b.Name)
		j.sweepDedupe(bucketDir, b.Name, &res)
		j.sweepDumps(bucketDir, &res)
		for _, ns := range messageNamespaces {
			nsDir := path.Join(bucketDir, ns)
			j.sweepTemp(nsDir, &res)
			j.removeIfEmpty(nsDir, &res)
		}
		j.removeIfEmpty(bucketDir, &res)
	}
	j.sweepTemp(conversationsDir, &res)
	j.removeIfEmpty(conversationsDir, &res)
	return res, nil
}

// sweepDedupe prunes markers past their age. The bucket's watermark file
// only goes once no other marker remains, since pruning it alone would
// revive every marker it had cleared.
func (j *Janitor) sweepDedupe(bucketDir, bucket string, res *Result) {
	if j.cfg.DedupeMaxAge <= 0 {
		return
	}
	dir := path.Join(bucketDir, dedupeNS)
	entries, err := j.be.List(dir)
	if err != nil {
		return
	}
	cutoff := j.clock().Add(-j.cfg.DedupeMaxAge)

	remaining := 0
	var watermark *store.Entry
	for i, e := range entries {
		if e.Dir {
			continue
		}
		if e.Name == bucket {
			watermark = &entries[i]
			continue
		}
		if strings.HasPrefix(e.Name, tempPrefix) {
			continue
		}
		if e.ModTime.Before(cutoff) {
			j.remove(path.Join(dir, e.Name), "dedupe_record")
			res.DedupeRecords++
			continue
		}
		remaining++
	}
	if watermark != nil && remaining == 0 && watermark.ModTime.Before(cutoff) {
		j.remove(path.Join(dir, watermark.Name), "dedupe_watermark")
		res.DedupeRecords++
	}
	j.sweepTemp(dir, res)
	j.removeIfEmpty(dir, res)
}

func (j *Janitor) sweepDumps(bucketDir string, res *Result) {
	if j.cfg.DumpMaxAge <= 0 {
		return
	}
	dir := path.Join(bucketDir, dumpsNS)
	entries, err := j.be.List(dir)
	if err != nil {
		return
	}
	cutoff := j.clock().Add(-j.cfg.DumpMaxAge)
	for _, e := range entries {
		if e.Dir || strings.HasPrefix(e.Name, ".") {
			continue
		}
		if e.ModTime.Before(cutoff) {
			j.remove(path.Join(dir, e.Name), "dump_replica")
			res.Dumps++
		}
	}
	j.sweepTemp(dir, res)
	j.removeIfEmpty(dir, res)
}

// sweepTemp removes temp files a crashed writer never renamed.
func (j *Janitor) sweepTemp(dir string, res *Result) {
	if j.cfg.TempMaxAge <= 0 {
		return
	}
	entries, err := j.be.List(dir)
	if err != nil {
		return
	}
	cutoff := j.clock().Add(-j.cfg.TempMaxAge)
	for _, e := range entries {
		if e.Dir || !strings.HasPrefix(e.Name, tempPrefix) {
			continue
		}
		if e.ModTime.Before(cutoff) {
			j.remove(path.Join(dir, e.Name), "temp_file")
			res.TempFiles++
		}
	}
}

func (j *Janitor) remove(p, kind string) {
	if j.cfg.DryRun {
		logger.Info("janitor_would_remove", "kind", kind, "path", p)
		return
	}
	if err := j.be.Delete(p); err != nil {
		logger.Warn("janitor_remove_failed", "kind", kind, "path", p, "error", err.Error())
		return
	}
	logger.Debug("janitor_removed", "kind", kind, "path", p)
}

func (j *Janitor) removeIfEmpty(dir string, res *Result) {
	if j.cfg.DryRun {
		return
	}
	entries, err := j.be.List(dir)
	if err != nil || len(entries) > 0 {
		return
	}
	if err := j.be.RemoveDirIfEmpty(dir); err != nil {
		return
	}
	res.Dirs++
}
