package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/epicdm/campaignflow/internal/models"
	"github.com/epicdm/campaignflow/internal/platform"
	"github.com/epicdm/campaignflow/internal/queue"
	"github.com/epicdm/campaignflow/internal/repository"
)

type fakeJobRepo struct {
	mu     sync.Mutex
	nextID int64
	jobs   map[int64]*models.Job
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{nextID: 1, jobs: make(map[int64]*models.Job)}
}

func (r *fakeJobRepo) Create(ctx context.Context, job *models.Job) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	cp := *job
	cp.ID = id
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.jobs[id] = &cp
	return id, nil
}

// seed inserts a job row directly, bypassing the producer.
func (r *fakeJobRepo) seed(job *models.Job) *models.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job.ID == 0 {
		job.ID = r.nextID
		r.nextID++
	} else if job.ID >= r.nextID {
		r.nextID = job.ID + 1
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	r.jobs[job.ID] = job
	return job
}

func (r *fakeJobRepo) get(id int64) *models.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[id]
}

func (r *fakeJobRepo) GetByID(ctx context.Context, id int64) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *job
	return &cp, nil
}

func (r *fakeJobRepo) GetForTenant(ctx context.Context, id, tenantID int64) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || job.TenantID != tenantID {
		return nil, nil
	}
	cp := *job
	return &cp, nil
}

func (r *fakeJobRepo) List(ctx context.Context, tenantID int64, filter repository.JobFilter) ([]*models.Job, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*models.Job
	for _, job := range r.jobs {
		if job.TenantID != tenantID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.JobType != "" && job.JobType != filter.JobType {
			continue
		}
		if filter.BrandID != 0 && (!job.BrandID.Valid || job.BrandID.Int64 != filter.BrandID) {
			continue
		}
		if filter.Cursor != 0 && job.ID >= filter.Cursor {
			continue
		}
		cp := *job
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	hasMore := len(matched) > limit
	if hasMore {
		matched = matched[:limit]
	}
	return matched, hasMore, nil
}

func (r *fakeJobRepo) UpdateStatus(ctx context.Context, id int64, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		job.Status = status
	}
	return nil
}

func (r *fakeJobRepo) MarkRunning(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		job.Status = models.JobStatusRunning
		job.Attempts++
	}
	return nil
}

func (r *fakeJobRepo) MarkCompleted(ctx context.Context, id int64, result json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		job.Status = models.JobStatusCompleted
		job.Result = result
	}
	return nil
}

func (r *fakeJobRepo) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		job.Status = models.JobStatusFailed
		job.LastError = nullString(errorMessage)
	}
	return nil
}

func (r *fakeJobRepo) CountActive(ctx context.Context, tenantID int64, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, job := range r.jobs {
		if job.TenantID != tenantID {
			continue
		}
		if job.Status == models.JobStatusRunning {
			count++
		} else if job.Status == models.JobStatusPending && !job.RunAt.After(now) {
			count++
		}
	}
	return count, nil
}

func (r *fakeJobRepo) CountQueued(ctx context.Context, tenantID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, job := range r.jobs {
		if job.TenantID == tenantID && job.Status == models.JobStatusPending {
			count++
		}
	}
	return count, nil
}

func (r *fakeJobRepo) ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*models.Job
	for _, job := range r.jobs {
		if job.Status == models.JobStatusPending && !job.CreatedAt.After(cutoff) {
			cp := *job
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

type fakeBrandRepo struct {
	owners map[int64]int64
}

func (r *fakeBrandRepo) GetByID(ctx context.Context, id int64) (*models.Brand, error) {
	tenantID, ok := r.owners[id]
	if !ok {
		return nil, nil
	}
	return &models.Brand{ID: id, TenantID: tenantID}, nil
}

func (r *fakeBrandRepo) GetOwner(ctx context.Context, brandID int64) (int64, error) {
	return r.owners[brandID], nil
}

type fakeQueueEntry struct {
	jobID    int64
	priority string
	delay    time.Duration
}

type fakeQueue struct {
	mu         sync.Mutex
	entries    map[string]fakeQueueEntry
	enqueueErr error
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{entries: make(map[string]fakeQueueEntry)}
}

func (q *fakeQueue) Enqueue(ctx context.Context, jobID int64, dedupKey, priority string, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	if _, ok := q.entries[dedupKey]; ok {
		return queue.ErrDuplicateTask
	}
	q.entries[dedupKey] = fakeQueueEntry{jobID: jobID, priority: priority, delay: delay}
	return nil
}

func (q *fakeQueue) Cancel(ctx context.Context, dedupKey string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, dedupKey)
	return nil
}

func (q *fakeQueue) Exists(ctx context.Context, dedupKey string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.entries[dedupKey]
	return ok, nil
}

func (q *fakeQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

type fakePostRepo struct {
	mu    sync.Mutex
	posts map[int64]*models.ScheduledPost
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{posts: make(map[int64]*models.ScheduledPost)}
}

func (r *fakePostRepo) seed(post *models.ScheduledPost) *models.ScheduledPost {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posts[post.ID] = post
	return post
}

func (r *fakePostRepo) GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	cp := *post
	return &cp, nil
}

func (r *fakePostRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []*models.ScheduledPost
	for _, post := range r.posts {
		if post.Status == models.PostStatusScheduled && post.Approved && !post.ScheduledTime.After(now) {
			cp := *post
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledTime.Before(due[j].ScheduledTime) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *fakePostRepo) UpdateStatus(ctx context.Context, status string, postID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if post, ok := r.posts[postID]; ok {
		post.Status = status
	}
	return nil
}

func (r *fakePostRepo) UpdateSchedule(ctx context.Context, postID int64, scheduledTime time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if post, ok := r.posts[postID]; ok {
		post.ScheduledTime = scheduledTime
		post.Status = models.PostStatusScheduled
	}
	return nil
}

func (r *fakePostRepo) ListScheduledTimes(ctx context.Context, brandID int64, from, to time.Time) ([]time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var times []time.Time
	for _, post := range r.posts {
		if post.BrandID == brandID && post.Status == models.PostStatusScheduled &&
			!post.ScheduledTime.Before(from) && post.ScheduledTime.Before(to) {
			times = append(times, post.ScheduledTime)
		}
	}
	return times, nil
}

type fakeVariationRepo struct {
	mu         sync.Mutex
	variations map[int64]*models.PostVariation
}

func newFakeVariationRepo() *fakeVariationRepo {
	return &fakeVariationRepo{variations: make(map[int64]*models.PostVariation)}
}

func (r *fakeVariationRepo) seed(v *models.PostVariation) *models.PostVariation {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variations[v.ID] = v
	return v
}

func (r *fakeVariationRepo) GetByID(ctx context.Context, id int64) (*models.PostVariation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.variations[id]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (r *fakeVariationRepo) ListByPostID(ctx context.Context, postID int64) ([]*models.PostVariation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*models.PostVariation
	for _, v := range r.variations {
		if v.PostID == postID {
			cp := *v
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched, nil
}

func (r *fakeVariationRepo) ListEligible(ctx context.Context, postID int64) ([]*models.PostVariation, error) {
	all, _ := r.ListByPostID(ctx, postID)
	var eligible []*models.PostVariation
	for _, v := range all {
		if v.Retryable() && v.AccountID.Valid {
			eligible = append(eligible, v)
		}
	}
	return eligible, nil
}

func (r *fakeVariationRepo) UpdateStatus(ctx context.Context, id int64, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.variations[id]; ok {
		v.Status = status
	}
	return nil
}

func (r *fakeVariationRepo) MarkPublished(ctx context.Context, id int64, externalPostID, externalPostURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.variations[id]; ok {
		v.Status = models.VariationStatusPublished
		v.ExternalPostID = nullString(externalPostID)
		v.ExternalPostURL = nullString(externalPostURL)
		v.ErrorMessage = nullString("")
	}
	return nil
}

func (r *fakeVariationRepo) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.variations[id]; ok {
		v.Status = models.VariationStatusFailed
		v.ErrorMessage = nullString(errorMessage)
	}
	return nil
}

type fakeAttemptRepo struct {
	mu       sync.Mutex
	nextID   int64
	attempts []*models.PublishAttempt
}

func newFakeAttemptRepo() *fakeAttemptRepo {
	return &fakeAttemptRepo{nextID: 1}
}

func (r *fakeAttemptRepo) Create(ctx context.Context, attempt *models.PublishAttempt) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *attempt
	cp.ID = r.nextID
	cp.CreatedAt = time.Now()
	r.nextID++
	r.attempts = append(r.attempts, &cp)
	return cp.ID, nil
}

func (r *fakeAttemptRepo) LatestByVariation(ctx context.Context, variationID int64) (*models.PublishAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *models.PublishAttempt
	for _, a := range r.attempts {
		if a.VariationID != variationID {
			continue
		}
		if latest == nil || a.AttemptNumber > latest.AttemptNumber {
			latest = a
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (r *fakeAttemptRepo) ListDueRetries(ctx context.Context, now time.Time, maxAttempts, limit int) ([]*models.PublishAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	latest := make(map[int64]*models.PublishAttempt)
	for _, a := range r.attempts {
		if cur, ok := latest[a.VariationID]; !ok || a.AttemptNumber > cur.AttemptNumber {
			latest[a.VariationID] = a
		}
	}

	var due []*models.PublishAttempt
	for _, a := range latest {
		if a.Status != models.AttemptStatusFailed && a.Status != models.AttemptStatusRateLimited {
			continue
		}
		if !a.NextRetryAt.Valid || a.NextRetryAt.Time.After(now) {
			continue
		}
		if a.AttemptNumber >= maxAttempts {
			continue
		}
		cp := *a
		due = append(due, &cp)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextRetryAt.Time.Before(due[j].NextRetryAt.Time) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *fakeAttemptRepo) byVariation(variationID int64) []*models.PublishAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*models.PublishAttempt
	for _, a := range r.attempts {
		if a.VariationID == variationID {
			cp := *a
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].AttemptNumber < matched[j].AttemptNumber })
	return matched
}

type fakeAccountRepo struct {
	accounts map[int64]*models.SocialAccount
}

func (r *fakeAccountRepo) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	acc, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *acc
	return &cp, nil
}

type fakeWindowRepo struct {
	windows []*models.PostingWindow
}

func (r *fakeWindowRepo) ListByBrand(ctx context.Context, brandID int64) ([]*models.PostingWindow, error) {
	var matched []*models.PostingWindow
	for _, w := range r.windows {
		if w.BrandID == brandID {
			matched = append(matched, w)
		}
	}
	return matched, nil
}

type fakePublishClient struct {
	mu    sync.Mutex
	calls int
	fn    func(req platform.PublishRequest) (*platform.PublishResult, error)
}

func (c *fakePublishClient) Publish(ctx context.Context, req platform.PublishRequest) (*platform.PublishResult, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.fn != nil {
		return c.fn(req)
	}
	return &platform.PublishResult{PostID: "ext-1", PostURL: "https://platform.test/p/ext-1"}, nil
}

func (c *fakePublishClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type fakeMediaResolver struct{}

func (fakeMediaResolver) ResolveURLs(ctx context.Context, keys []string) ([]string, error) {
	urls := make([]string, 0, len(keys))
	for _, key := range keys {
		urls = append(urls, "https://media.test/"+key)
	}
	return urls, nil
}
