package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-portal/internal/domain"
	"github.com/spec-kit/helpdesk-portal/internal/events"
	"github.com/spec-kit/helpdesk-portal/internal/repository"
)

// In-memory repository fakes. They mimic the Postgres implementations'
// guarded-update semantics, including ErrStaleUpdate on predicate misses.

type fakeTicketRepo struct {
	mu      sync.Mutex
	seq     int
	tickets map[string]*domain.Ticket
	values  map[string][]domain.FieldValue
	files   map[string][]domain.Attachment
	sla     map[string]int // category id -> sla hours, for ListActiveWithSLA
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{
		tickets: map[string]*domain.Ticket{},
		values:  map[string][]domain.FieldValue{},
		files:   map[string][]domain.Attachment{},
		sla:     map[string]int{},
	}
}

func (f *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket, values []domain.FieldValue, attachments []domain.Attachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	now := time.Now()
	ticket.ID = fmt.Sprintf("ticket-%d", f.seq)
	ticket.Number = fmt.Sprintf("T-%d-%03d", now.Year(), f.seq)
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = now
	}
	ticket.UpdatedAt = now
	clone := *ticket
	f.tickets[ticket.ID] = &clone
	f.values[ticket.ID] = append([]domain.FieldValue{}, values...)
	f.files[ticket.ID] = append([]domain.Attachment{}, attachments...)
	return nil
}

func (f *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *ticket
	return &clone, nil
}

func (f *fakeTicketRepo) GetByNumber(_ context.Context, number string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ticket := range f.tickets {
		if ticket.Number == number {
			clone := *ticket
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range f.tickets {
		if filter.RequesterID != nil && ticket.RequesterID != *filter.RequesterID {
			continue
		}
		if filter.CategoryID != nil && ticket.CategoryID != *filter.CategoryID {
			continue
		}
		if filter.AssigneeID != nil && (ticket.AssigneeID == nil || *ticket.AssigneeID != *filter.AssigneeID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
			continue
		}
		if filter.SearchTerm != nil && !strings.Contains(strings.ToLower(ticket.Title), strings.ToLower(*filter.SearchTerm)) {
			continue
		}
		result = append(result, *ticket)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (f *fakeTicketRepo) ListActiveWithSLA(_ context.Context) ([]repository.TicketWithSLA, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []repository.TicketWithSLA
	for _, ticket := range f.tickets {
		if ticket.Status == domain.TicketStatusResolved || ticket.Status == domain.TicketStatusClosed {
			continue
		}
		result = append(result, repository.TicketWithSLA{Ticket: *ticket, SLAHours: f.sla[ticket.CategoryID]})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Ticket.ID < result[j].Ticket.ID })
	return result, nil
}

func (f *fakeTicketRepo) UpdateStatus(_ context.Context, ticket *domain.Ticket, expected domain.TicketStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.tickets[ticket.ID]
	if !ok || stored.Status != expected {
		return repository.ErrStaleUpdate
	}
	stored.Status = ticket.Status
	stored.Resolution = ticket.Resolution
	stored.ResolvedAt = ticket.ResolvedAt
	stored.UpdatedAt = time.Now()
	return nil
}

func (f *fakeTicketRepo) UpdateAssignee(_ context.Context, ticketID string, assigneeID *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.tickets[ticketID]
	if !ok || stored.Status == domain.TicketStatusClosed {
		return repository.ErrStaleUpdate
	}
	stored.AssigneeID = assigneeID
	stored.UpdatedAt = time.Now()
	return nil
}

func (f *fakeTicketRepo) UpdatePriority(_ context.Context, ticketID string, priority domain.TicketPriority) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.tickets[ticketID]
	if !ok || stored.Status == domain.TicketStatusClosed {
		return repository.ErrStaleUpdate
	}
	stored.Priority = priority
	stored.UpdatedAt = time.Now()
	return nil
}

func (f *fakeTicketRepo) CloseWithComment(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus, comment *domain.Comment) error {
	if err := f.UpdateStatus(ctx, ticket, expected); err != nil {
		return err
	}
	comment.ID = fmt.Sprintf("comment-%s", ticket.ID)
	comment.CreatedAt = time.Now()
	return nil
}

func (f *fakeTicketRepo) SubmitRating(_ context.Context, ticketID string, rating int, comment *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.tickets[ticketID]
	if !ok || stored.Status != domain.TicketStatusResolved || stored.SatisfactionRating != nil {
		return repository.ErrStaleUpdate
	}
	stored.SatisfactionRating = &rating
	stored.SatisfactionComment = comment
	stored.Status = domain.TicketStatusClosed
	stored.UpdatedAt = time.Now()
	return nil
}

func (f *fakeTicketRepo) CountByCategory(_ context.Context, categoryID string, nonTerminalOnly bool) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, ticket := range f.tickets {
		if ticket.CategoryID != categoryID {
			continue
		}
		if nonTerminalOnly && ticket.Status == domain.TicketStatusClosed {
			continue
		}
		count++
	}
	return count, nil
}

func containsStatus(statuses []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

type fakeCategoryRepo struct {
	mu         sync.Mutex
	seq        int
	categories map[string]*domain.Category
}

func newFakeCategoryRepo() *fakeCategoryRepo {
	return &fakeCategoryRepo{categories: map[string]*domain.Category{}}
}

func (f *fakeCategoryRepo) add(category domain.Category) *domain.Category {
	f.mu.Lock()
	defer f.mu.Unlock()
	if category.ID == "" {
		f.seq++
		category.ID = fmt.Sprintf("category-%d", f.seq)
	}
	f.categories[category.ID] = &category
	return &category
}

func (f *fakeCategoryRepo) Create(_ context.Context, category *domain.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	category.ID = fmt.Sprintf("category-%d", f.seq)
	category.CreatedAt = time.Now()
	category.UpdatedAt = category.CreatedAt
	clone := *category
	f.categories[category.ID] = &clone
	return nil
}

func (f *fakeCategoryRepo) Update(_ context.Context, category *domain.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.categories[category.ID]; !ok {
		return pgx.ErrNoRows
	}
	category.UpdatedAt = time.Now()
	clone := *category
	f.categories[category.ID] = &clone
	return nil
}

func (f *fakeCategoryRepo) GetByID(_ context.Context, id string) (*domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	category, ok := f.categories[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *category
	return &clone, nil
}

func (f *fakeCategoryRepo) ListActive(_ context.Context) ([]domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Category
	for _, category := range f.categories {
		if category.IsActive {
			result = append(result, *category)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (f *fakeCategoryRepo) ListAll(_ context.Context) ([]domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Category
	for _, category := range f.categories {
		result = append(result, *category)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (f *fakeCategoryRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.categories[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.categories, id)
	return nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	seq   int
	users map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*domain.User{}}
}

func (f *fakeUserRepo) add(user domain.User) *domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == "" {
		f.seq++
		user.ID = fmt.Sprintf("user-%d", f.seq)
	}
	f.users[user.ID] = &user
	return &user
}

func (f *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	user.ID = fmt.Sprintf("user-%d", f.seq)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	clone := *user
	f.users[user.ID] = &clone
	return nil
}

func (f *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	clone := *user
	f.users[user.ID] = &clone
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []domain.TicketHistory
}

func (f *fakeHistoryRepo) Create(_ context.Context, entry *domain.TicketHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.ID = fmt.Sprintf("history-%d", len(f.entries)+1)
	entry.CreatedAt = time.Now()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeHistoryRepo) ListByTicket(_ context.Context, ticketID string, _, _ int) ([]domain.TicketHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.TicketHistory
	for _, entry := range f.entries {
		if entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (f *fakeHistoryRepo) byType(changeType domain.TicketChangeType) []domain.TicketHistory {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.TicketHistory
	for _, entry := range f.entries {
		if entry.ChangeType == changeType {
			result = append(result, entry)
		}
	}
	return result
}

type fakeAttachmentRepo struct {
	tickets *fakeTicketRepo
}

func (f *fakeAttachmentRepo) Create(_ context.Context, attachment *domain.Attachment) error {
	f.tickets.mu.Lock()
	defer f.tickets.mu.Unlock()
	f.tickets.files[attachment.TicketID] = append(f.tickets.files[attachment.TicketID], *attachment)
	return nil
}

func (f *fakeAttachmentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Attachment, error) {
	f.tickets.mu.Lock()
	defer f.tickets.mu.Unlock()
	return append([]domain.Attachment{}, f.tickets.files[ticketID]...), nil
}

type fakeCommentRepo struct {
	mu       sync.Mutex
	seq      int
	comments map[string]*domain.Comment
}

func newFakeCommentRepo() *fakeCommentRepo {
	return &fakeCommentRepo{comments: map[string]*domain.Comment{}}
}

func (f *fakeCommentRepo) Create(_ context.Context, comment *domain.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	comment.ID = fmt.Sprintf("comment-%d", f.seq)
	comment.CreatedAt = time.Now()
	clone := *comment
	f.comments[comment.ID] = &clone
	return nil
}

func (f *fakeCommentRepo) GetByID(_ context.Context, id string) (*domain.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	comment, ok := f.comments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *comment
	return &clone, nil
}

func (f *fakeCommentRepo) ListByTicket(_ context.Context, ticketID string, includeInternal bool) ([]domain.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Comment
	for _, comment := range f.comments {
		if comment.TicketID != ticketID {
			continue
		}
		if comment.Internal && !includeInternal {
			continue
		}
		result = append(result, *comment)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (f *fakeCommentRepo) Delete(_ context.Context, id, ticketID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	comment, ok := f.comments[id]
	if !ok || comment.TicketID != ticketID {
		return pgx.ErrNoRows
	}
	delete(f.comments, id)
	return nil
}

type fakeFieldRepo struct {
	mu        sync.Mutex
	seq       int
	fields    map[string]*domain.CategoryField
	hasValues map[string]bool
}

func newFakeFieldRepo() *fakeFieldRepo {
	return &fakeFieldRepo{fields: map[string]*domain.CategoryField{}, hasValues: map[string]bool{}}
}

func (f *fakeFieldRepo) add(field domain.CategoryField) *domain.CategoryField {
	f.mu.Lock()
	defer f.mu.Unlock()
	if field.ID == "" {
		f.seq++
		field.ID = fmt.Sprintf("field-%d", f.seq)
	}
	f.fields[field.ID] = &field
	return &field
}

func (f *fakeFieldRepo) Create(_ context.Context, field *domain.CategoryField) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	field.ID = fmt.Sprintf("field-%d", f.seq)
	field.CreatedAt = time.Now()
	field.UpdatedAt = field.CreatedAt
	clone := *field
	f.fields[field.ID] = &clone
	return nil
}

func (f *fakeFieldRepo) Update(_ context.Context, field *domain.CategoryField) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.fields[field.ID]; !ok {
		return pgx.ErrNoRows
	}
	field.UpdatedAt = time.Now()
	clone := *field
	f.fields[field.ID] = &clone
	return nil
}

func (f *fakeFieldRepo) GetByID(_ context.Context, id string) (*domain.CategoryField, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	field, ok := f.fields[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *field
	return &clone, nil
}

func (f *fakeFieldRepo) ListByCategory(_ context.Context, categoryID string, activeOnly bool) ([]domain.CategoryField, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.CategoryField
	for _, field := range f.fields {
		if field.CategoryID != categoryID {
			continue
		}
		if activeOnly && !field.IsActive {
			continue
		}
		result = append(result, *field)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Position < result[j].Position })
	return result, nil
}

func (f *fakeFieldRepo) UpdatePositions(_ context.Context, categoryID string, positions map[string]int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, position := range positions {
		field, ok := f.fields[id]
		if !ok || field.CategoryID != categoryID {
			return pgx.ErrNoRows
		}
		field.Position = position
	}
	return nil
}

func (f *fakeFieldRepo) HasValues(_ context.Context, fieldID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasValues[fieldID], nil
}

func (f *fakeFieldRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.fields[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.fields, id)
	return nil
}

type fakeFieldValueRepo struct {
	mu     sync.Mutex
	values map[string][]domain.FieldValue
}

func newFakeFieldValueRepo() *fakeFieldValueRepo {
	return &fakeFieldValueRepo{values: map[string][]domain.FieldValue{}}
}

func (f *fakeFieldValueRepo) CreateMany(_ context.Context, ticketID string, values []domain.FieldValue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range values {
		values[i].TicketID = ticketID
	}
	f.values[ticketID] = append(f.values[ticketID], values...)
	return nil
}

func (f *fakeFieldValueRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.FieldValue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.FieldValue{}, f.values[ticketID]...), nil
}

type fakeTemplateRepo struct {
	mu        sync.Mutex
	seq       int
	templates map[string]*domain.Template
}

func newFakeTemplateRepo() *fakeTemplateRepo {
	return &fakeTemplateRepo{templates: map[string]*domain.Template{}}
}

func (f *fakeTemplateRepo) Create(_ context.Context, template *domain.Template) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	template.ID = fmt.Sprintf("template-%d", f.seq)
	template.CreatedAt = time.Now()
	template.UpdatedAt = template.CreatedAt
	clone := *template
	f.templates[template.ID] = &clone
	return nil
}

func (f *fakeTemplateRepo) Update(_ context.Context, template *domain.Template) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.templates[template.ID]; !ok {
		return pgx.ErrNoRows
	}
	clone := *template
	f.templates[template.ID] = &clone
	return nil
}

func (f *fakeTemplateRepo) GetByID(_ context.Context, id string) (*domain.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	template, ok := f.templates[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *template
	return &clone, nil
}

func (f *fakeTemplateRepo) ListByType(_ context.Context, templateType domain.TemplateType, activeOnly bool) ([]domain.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Template
	for _, template := range f.templates {
		if template.Type != templateType {
			continue
		}
		if activeOnly && !template.IsActive {
			continue
		}
		result = append(result, *template)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (f *fakeTemplateRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.templates[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.templates, id)
	return nil
}

type capturingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *capturingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *capturingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *capturingDispatcher) byType(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var result []events.Event
	for _, event := range d.events {
		if event.Type == eventType {
			result = append(result, event)
		}
	}
	return result
}
