// Package export renders the stimulus event table into downloadable
// artifacts. Exports run asynchronously on a single worker goroutine and the
// rendered payloads are stored as immutable blobs.
package export

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	blobcore "ogencore/internal/blob/core"
	"ogencore/internal/core"
	"ogencore/pkg/domain"
)

// Format identifies a rendering of the stimulus table.
type Format string

// Supported export formats.
const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Status describes the lifecycle stage of an export request.
type Status string

// Export lifecycle stages.
const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Artifact captures one stored rendering of the table.
type Artifact struct {
	Key         string    `json:"key"`
	Format      Format    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	ETag        string    `json:"etag,omitempty"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record tracks an export request and its resulting artifacts.
type Record struct {
	ID          string     `json:"id"`
	Formats     []Format   `json:"formats"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Artifacts   []Artifact `json:"artifacts,omitempty"`
	RequestedBy string     `json:"requested_by"`
	Reason      string     `json:"reason,omitempty"`
	Rows        int        `json:"rows"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (r Record) copy() Record {
	out := r
	out.Formats = append([]Format(nil), r.Formats...)
	out.Artifacts = append([]Artifact(nil), r.Artifacts...)
	if r.CompletedAt != nil {
		at := *r.CompletedAt
		out.CompletedAt = &at
	}
	return out
}

// Input represents an enqueue request for the worker.
type Input struct {
	Formats     []Format
	RequestedBy string
	Reason      string
}

// TableSource provides the committed event table to render.
type TableSource interface {
	ListStimulationIntervals() []domain.StimulationInterval
}

// Worker executes stimulus table exports asynchronously.
type Worker struct {
	source TableSource
	blobs  blobcore.Store
	audit  core.AuditRecorder

	queue chan task
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type task struct {
	id string
}

// NewWorker constructs an export worker. audit may be nil.
func NewWorker(source TableSource, blobs blobcore.Store, audit core.AuditRecorder) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		source: source,
		blobs:  blobs,
		audit:  audit,
		queue:  make(chan task, 32),
		jobs:   make(map[string]*Record),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for completion.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case t := <-w.queue:
			w.process(t)
		}
	}
}

// Enqueue schedules an export job and returns the queued record.
func (w *Worker) Enqueue(_ context.Context, input Input) (Record, error) {
	if w.source == nil {
		return Record{}, fmt.Errorf("table source not configured")
	}
	if w.blobs == nil {
		return Record{}, fmt.Errorf("blob store not configured")
	}

	formats := input.Formats
	if len(formats) == 0 {
		formats = []Format{FormatJSON, FormatCSV}
	}
	uniq := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{})
	for _, format := range formats {
		if _, duplicate := seen[format]; duplicate {
			continue
		}
		if format != FormatCSV && format != FormatJSON {
			return Record{}, fmt.Errorf("unsupported export format %s", format)
		}
		uniq = append(uniq, format)
		seen[format] = struct{}{}
	}

	id := newID()
	now := time.Now().UTC()
	record := Record{
		ID:          id,
		Formats:     uniq,
		Status:      StatusQueued,
		RequestedBy: input.RequestedBy,
		Reason:      input.Reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[id] = &record
	queued := record.copy()
	w.mu.Unlock()

	select {
	case w.queue <- task{id: id}:
	default:
		w.mu.Lock()
		delete(w.jobs, id)
		w.mu.Unlock()
		return Record{}, fmt.Errorf("export queue full")
	}

	return queued, nil
}

// Get returns a snapshot of the export record.
func (w *Worker) Get(id string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return Record{}, false
	}
	return record.copy(), true
}

func (w *Worker) process(t task) {
	w.mu.RLock()
	record, ok := w.jobs[t.id]
	if !ok {
		w.mu.RUnlock()
		return
	}
	formats := append([]Format(nil), record.Formats...)
	w.mu.RUnlock()

	w.updateStatus(t.id, StatusRunning, "")

	intervals := w.source.ListStimulationIntervals()
	artifacts := make([]Artifact, 0, len(formats))
	for _, format := range formats {
		payload, contentType, err := render(format, intervals)
		if err != nil {
			w.fail(t.id, err.Error())
			return
		}
		key := fmt.Sprintf("exports/%s/stimulus_table.%s", t.id, format)
		info, err := w.blobs.Put(w.ctx, key, bytes.NewReader(payload), blobcore.PutOptions{
			ContentType: contentType,
			Metadata:    map[string]string{"rows": strconv.Itoa(len(intervals))},
		})
		if err != nil {
			w.fail(t.id, fmt.Sprintf("store artifact: %v", err))
			return
		}
		artifacts = append(artifacts, Artifact{
			Key:         info.Key,
			Format:      format,
			ContentType: contentType,
			SizeBytes:   info.Size,
			ETag:        info.ETag,
			URL:         info.URL,
			CreatedAt:   info.LastModified,
		})
	}

	w.complete(t.id, artifacts, len(intervals))
}

func (w *Worker) updateStatus(id string, status Status, message string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.Error = message
		record.UpdatedAt = now
	}
	w.mu.Unlock()
}

func (w *Worker) complete(id string, artifacts []Artifact, rows int) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.Rows = rows
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	if w.audit != nil {
		w.audit.Record(w.ctx, core.AuditEntry{
			Operation: "export_stimulus_table",
			Status:    core.AuditStatusSuccess,
			EntityID:  id,
			At:        now,
		})
	}
}

func (w *Worker) fail(id, reason string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	if w.audit != nil {
		w.audit.Record(w.ctx, core.AuditEntry{
			Operation: "export_stimulus_table",
			Status:    core.AuditStatusError,
			EntityID:  id,
			Error:     reason,
			At:        now,
		})
	}
}

// tableColumns is the CSV header, in the column order of the event table.
var tableColumns = []string{
	"row_id", "start_time", "stop_time",
	"power", "power_per_rois",
	"frequency", "frequency_per_rois",
	"pulse_width", "pulse_width_per_rois",
	"targets", "stimulus_pattern", "stimulus_site",
}

func render(format Format, intervals []domain.StimulationInterval) ([]byte, string, error) {
	switch format {
	case FormatJSON:
		payload, err := json.Marshal(intervals)
		if err != nil {
			return nil, "", fmt.Errorf("marshal json: %w", err)
		}
		return payload, "application/json", nil
	case FormatCSV:
		buf := &bytes.Buffer{}
		writer := csv.NewWriter(buf)
		if err := writer.Write(tableColumns); err != nil {
			return nil, "", err
		}
		for _, interval := range intervals {
			row := []string{
				strconv.FormatInt(interval.RowID, 10),
				formatFloat(interval.StartTime),
				formatFloat(interval.StopTime),
				formatFloatPtr(interval.Power),
				formatFloats(interval.PowerPerROIs),
				formatFloatPtr(interval.Frequency),
				formatFloats(interval.FrequencyPerROIs),
				formatFloatPtr(interval.PulseWidth),
				formatFloats(interval.PulseWidthPerROIs),
				interval.TargetsID,
				interval.StimulusPatternID,
				interval.StimulusSiteID,
			}
			if err := writer.Write(row); err != nil {
				return nil, "", err
			}
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "text/csv", nil
	default:
		return nil, "", fmt.Errorf("unsupported export format %s", format)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatFloats(vs []float64) string {
	if len(vs) == 0 {
		return ""
	}
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = formatFloat(v)
	}
	return strings.Join(parts, ";")
}

func newID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("export-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
