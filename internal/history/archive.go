// Package history keeps a JSON record of every finished download in a
// gocloud.dev/blob bucket (file://, mem:// or s3:// URLs).
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"

	"github.com/MrSnakeDoc/dlbridge/internal/domain"
)

// Prefix is the key prefix of every record.
const Prefix = "history/"

const dayLayout = "2006/01/02"

// Archive writes and reads finished job records.
type Archive struct {
	bucket *blob.Bucket
	now    func() time.Time
}

// Open opens the bucket at url.
func Open(ctx context.Context, url string) (*Archive, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("history: open bucket: %w", err)
	}
	return New(bucket), nil
}

// New wraps an already opened bucket.
func New(bucket *blob.Bucket) *Archive {
	return &Archive{bucket: bucket, now: time.Now}
}

// Key returns the object key of a job record:
// history/YYYY/MM/DD/<trackId>-<queueId>.json, dated by FinishedAt in UTC.
func Key(job domain.Job) string {
	at := job.FinishedAt
	if at.IsZero() {
		at = job.UpdatedAt
	}
	name := job.TrackID + "-" + job.QueueID + ".json"
	return Prefix + at.UTC().Format(dayLayout) + "/" + strings.ReplaceAll(name, "/", "_")
}

// Archive stores the record of a terminal job. Non-terminal jobs are refused.
func (a *Archive) Archive(ctx context.Context, job domain.Job) error {
	if !job.Status.IsTerminal() {
		return fmt.Errorf("history: job %s is %s, not finished", job.TrackID, job.Status)
	}
	if job.FinishedAt.IsZero() {
		job.FinishedAt = a.now()
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("history: marshal job: %w", err)
	}
	opts := &blob.WriterOptions{ContentType: "application/json"}
	if err := a.bucket.WriteAll(ctx, Key(job), data, opts); err != nil {
		return fmt.Errorf("history: write %s: %w", job.TrackID, err)
	}
	return nil
}

// Recent returns up to limit records, most recently finished first.
func (a *Archive) Recent(ctx context.Context, limit int) ([]domain.Job, error) {
	keys, err := a.keys(ctx)
	if err != nil {
		return nil, err
	}
	// keys sort by day; records inside a day are ordered after decoding
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	var out []domain.Job
	lastDay := ""
	for _, key := range keys {
		day := dayOf(key)
		if limit > 0 && len(out) >= limit && day != lastDay {
			break
		}
		data, err := a.bucket.ReadAll(ctx, key)
		if err != nil {
			if gcerrors.Code(err) == gcerrors.NotFound {
				continue
			}
			return nil, fmt.Errorf("history: read %s: %w", key, err)
		}
		var job domain.Job
		if err := json.Unmarshal(data, &job); err != nil {
			continue
		}
		out = append(out, job)
		lastDay = day
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FinishedAt.After(out[j].FinishedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Prune deletes records filed on a day before the day of cutoff and returns
// how many were removed.
func (a *Archive) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	keys, err := a.keys(ctx)
	if err != nil {
		return 0, err
	}

	limit := cutoff.UTC().Format(dayLayout)
	removed := 0
	for _, key := range keys {
		day := dayOf(key)
		if day == "" || day >= limit {
			continue
		}
		if err := a.bucket.Delete(ctx, key); err != nil && gcerrors.Code(err) != gcerrors.NotFound {
			return removed, fmt.Errorf("history: delete %s: %w", key, err)
		}
		removed++
	}
	return removed, nil
}

// Accessible reports whether the bucket can be reached.
func (a *Archive) Accessible(ctx context.Context) error {
	ok, err := a.bucket.IsAccessible(ctx)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if !ok {
		return errors.New("history: bucket not accessible")
	}
	return nil
}

// Close releases the bucket.
func (a *Archive) Close() error {
	return a.bucket.Close()
}

func (a *Archive) keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := a.bucket.List(&blob.ListOptions{Prefix: Prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("history: list: %w", err)
		}
		if obj.IsDir || path.Ext(obj.Key) != ".json" {
			continue
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// dayOf returns the YYYY/MM/DD part of a record key, or "" when malformed.
func dayOf(key string) string {
	rest, ok := strings.CutPrefix(key, Prefix)
	if !ok || len(rest) < len(dayLayout)+1 {
		return ""
	}
	day := rest[:len(dayLayout)]
	if _, err := time.Parse(dayLayout, day); err != nil {
		return ""
	}
	return day
}
