package services

import (
	"context"
	"sort"
	"sync"

	"github.com/echomind/backend/internal/models"
	"github.com/echomind/backend/internal/providers/llm"
	pgrepo "github.com/echomind/backend/internal/repositories/postgres"
	"github.com/echomind/backend/internal/utils"
)

type fakeConversationRepo struct {
	mu    sync.Mutex
	rows  map[string]models.Conversation
	order []string
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{rows: map[string]models.Conversation{}}
}

func (r *fakeConversationRepo) Insert(_ context.Context, c *models.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[c.ID] = *c
	r.order = append(r.order, c.ID)
	return nil
}

func (r *fakeConversationRepo) GetByID(_ context.Context, id string) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	out := c
	return &out, nil
}

func (r *fakeConversationRepo) ListByUser(_ context.Context, userID string, f pgrepo.ConversationFilter) ([]models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Conversation
	for _, id := range r.order {
		c := r.rows[id]
		if c.UserID != userID {
			continue
		}
		if f.Start != nil && f.End != nil {
			if c.StartTime.Before(*f.Start) || !c.StartTime.Before(*f.End) {
				continue
			}
		}
		if len(f.Topics) > 0 {
			overlap := false
			for _, want := range f.Topics {
				for _, got := range c.KeyTopics {
					if want == got {
						overlap = true
					}
				}
			}
			if !overlap {
				continue
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *fakeConversationRepo) Update(_ context.Context, c *models.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[c.ID] = *c
	return nil
}

func (r *fakeConversationRepo) UpdateTitle(_ context.Context, id, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return utils.ErrNotFound
	}
	c.Title = title
	r.rows[id] = c
	return nil
}

type fakeMessageRepo struct {
	mu   sync.Mutex
	rows []models.Message
}

func newFakeMessageRepo() *fakeMessageRepo { return &fakeMessageRepo{} }

func (r *fakeMessageRepo) Insert(_ context.Context, m *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, *m)
	return nil
}

func (r *fakeMessageRepo) byConversation(conversationID string) []models.Message {
	var out []models.Message
	for _, m := range r.rows {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func (r *fakeMessageRepo) ListByConversation(_ context.Context, conversationID string) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byConversation(conversationID), nil
}

func (r *fakeMessageRepo) LatestN(_ context.Context, conversationID string, n int) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := r.byConversation(conversationID)
	if n > 0 && len(rows) > n {
		rows = rows[len(rows)-n:]
	}
	return rows, nil
}

func (r *fakeMessageRepo) CountByConversation(_ context.Context, conversationID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.byConversation(conversationID))), nil
}

type fakeAnalysisRepo struct {
	mu      sync.Mutex
	records []models.ConversationAnalysis
}

func newFakeAnalysisRepo() *fakeAnalysisRepo { return &fakeAnalysisRepo{} }

func (r *fakeAnalysisRepo) Create(_ context.Context, a *models.ConversationAnalysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *a)
	return nil
}

func (r *fakeAnalysisRepo) GetByConversationID(_ context.Context, conversationID string) (*models.ConversationAnalysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.records {
		if r.records[i].ConversationID == conversationID {
			out := r.records[i]
			return &out, nil
		}
	}
	return nil, utils.ErrNotFound
}

type fakeUserRepo struct {
	mu   sync.Mutex
	rows map[string]models.User
}

func newFakeUserRepo() *fakeUserRepo { return &fakeUserRepo{rows: map[string]models.User{}} }

func (r *fakeUserRepo) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[u.ID] = *u
	return nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.rows {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.rows[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	out := u
	return &out, nil
}

// fakeEmbedder returns a fixed vector for every input.
type fakeEmbedder struct {
	vec []float32
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) []float32 {
	if text == "" {
		return nil
	}
	return f.vec
}

func (f *fakeEmbedder) Dimensions() int { return len(f.vec) }
func (f *fakeEmbedder) Close() error    { return nil }

// fakeLLM scripts both capability methods and records usage.
type fakeLLM struct {
	mu sync.Mutex

	generateResp string
	generateErr  error

	streamChunks []string
	streamErr    error

	generateCalls int
	prompts       []string
}

func (f *fakeLLM) Generate(_ context.Context, prompt string, _ llm.Options) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generateCalls++
	f.prompts = append(f.prompts, prompt)
	if f.generateErr != nil {
		return "", f.generateErr
	}
	return f.generateResp, nil
}

func (f *fakeLLM) Stream(_ context.Context, prompt string, _ llm.Options) (<-chan string, <-chan error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	out := make(chan string, len(f.streamChunks)+1)
	errs := make(chan error, 1)
	for _, c := range f.streamChunks {
		out <- c
	}
	if f.streamErr != nil {
		errs <- f.streamErr
	}
	close(out)
	close(errs)
	return out, errs
}

func (f *fakeLLM) Close() error { return nil }

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generateCalls
}
