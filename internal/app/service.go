package app

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"brainstorm/api/internal/activity"
	"brainstorm/api/internal/auth"
	"brainstorm/api/internal/authpw"
	"brainstorm/api/internal/config"
	"brainstorm/api/internal/email"
	"brainstorm/api/internal/export"
	"brainstorm/api/internal/markup"
	"brainstorm/api/internal/pagination"
	"brainstorm/api/internal/rbac"
	"brainstorm/api/internal/revisions"
	"brainstorm/api/internal/search"
	"brainstorm/api/internal/slug"
	"brainstorm/api/internal/store"
	"brainstorm/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

// ThoughtListQuery mirrors the public listing parameters. Zero values mean
// "no constraint"; Exclude negates the equality and time filters as a group.
type ThoughtListQuery struct {
	IdeaSlug  string
	AuthorID  string
	OlderThan *time.Time
	NewerThan *time.Time
	Exclude   bool
	OrderBy   string
	Desc      bool
	Count     int
	Slice     int
}

const (
	teaserLength      = 280
	shortTeaserLength = 140
)

var allowedTaskPriorities = map[string]struct{}{
	store.PriorityLow:    {},
	store.PriorityMedium: {},
	store.PriorityHigh:   {},
	store.PriorityNext:   {},
}

var allowedBatchActions = map[string]struct{}{
	"publish":   {},
	"unpublish": {},
	"trash":     {},
	"untrash":   {},
	"move":      {},
	"delete":    {},
}

type dataStore interface {
	Ping(ctx context.Context) error
	GetUserByID(context.Context, string) (store.User, error)
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)

	ListIdeas(context.Context, int, int) ([]store.Idea, error)
	CountIdeas(context.Context) (int, error)
	GetIdea(context.Context, string) (store.Idea, error)
	IdeaSlugTaken(context.Context, string) (bool, error)
	InsertIdea(context.Context, store.Idea) (store.Idea, error)
	UpdateIdea(context.Context, string, string, string, string) error
	DeleteIdea(context.Context, string) error
	SwapIdeaOrder(context.Context, string, string) error
	NextIdea(context.Context, int) (store.Idea, error)
	PrevIdea(context.Context, int) (store.Idea, error)
	IdeaThoughtCount(context.Context, string) (int, error)

	ListThoughts(context.Context, store.ThoughtFilter) ([]store.Thought, error)
	CountThoughts(context.Context, store.ThoughtFilter) (int, error)
	GetThought(context.Context, string) (store.Thought, error)
	ThoughtSlugTaken(context.Context, string) (bool, error)
	InsertThought(context.Context, store.Thought) error
	UpdateThoughtContent(context.Context, string, string, string, string) error
	SetThoughtDraft(context.Context, string, bool, bool) error
	SetThoughtTrash(context.Context, string, bool) error
	MoveThought(context.Context, string, string) error
	DeleteThought(context.Context, string) error
	AdjacentThoughts(context.Context, string, time.Time, bool, int) ([]store.Thought, error)
	CountThoughtsWithImage(context.Context, string, string) (int, error)

	InsertHighlight(context.Context, store.Highlight) error
	GetHighlight(context.Context, string) (store.Highlight, error)
	UpdateHighlight(context.Context, string, string, string, string, string) error
	DeleteHighlight(context.Context, string) error
	ListHighlights(context.Context, int, int) ([]store.Highlight, error)
	CountHighlights(context.Context) (int, error)

	InsertReadingListItem(context.Context, store.ReadingListItem) error
	GetReadingListItem(context.Context, string) (store.ReadingListItem, error)
	UpdateReadingListItem(context.Context, string, string, string, string, string) error
	SetReadingListFavorite(context.Context, string, bool) error
	FinishReadingListItem(context.Context, string) error
	DeleteReadingListItem(context.Context, string) error
	ListReadingList(context.Context, *bool, int, int) ([]store.ReadingListItem, error)
	CountReadingList(context.Context, *bool) (int, error)

	InsertTask(context.Context, store.Task) error
	GetTask(context.Context, string) (store.Task, error)
	UpdateTask(context.Context, string, string, string) error
	CompleteTask(context.Context, string) error
	ReopenTask(context.Context, string) error
	DeleteTask(context.Context, string) error
	ListTasks(context.Context, bool) ([]store.Task, error)

	InsertNote(context.Context, store.Note) error
	GetNote(context.Context, string) (store.Note, error)
	UpdateNote(context.Context, string, string) error
	DeleteNote(context.Context, string) error
	SetNoteLinks(context.Context, string, []string, []string) error
	ListNotes(context.Context) ([]store.Note, error)

	InsertActivity(context.Context, store.Activity) error
	ListActivities(context.Context, int, int) ([]store.Activity, error)
	CountActivities(context.Context) (int, error)

	Summary(context.Context) (store.SummaryCounts, error)
}

// refreshStore holds refresh sessions. Redis serves it when configured,
// Postgres otherwise; both speak the same hashed-token protocol.
type refreshStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	Ping(ctx context.Context) error
}

type revisionService interface {
	EnsureRepo(slug string, initial revisions.Snapshot, author string) error
	Commit(slug string, snapshot revisions.Snapshot, author, message string) (revisions.CommitInfo, error)
	History(slug string, limit int) ([]revisions.CommitInfo, error)
	GetByHash(slug, hash string) (revisions.Snapshot, error)
	TagPublished(slug string) error
	Remove(slug string) error
}

type searchIndex interface {
	Search(q search.Query) search.Response
	IndexThought(t search.ThoughtRecord)
	IndexIdea(i search.IdeaRecord)
	IndexHighlight(h search.HighlightRecord)
	DeleteThought(slug string)
	DeleteIdea(slug string)
	DeleteHighlight(id string)
}

type mediaStore interface {
	Upload(ctx context.Context, filename, contentType string, size int64, reader io.Reader) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions refreshStore
	search   searchIndex
	rev      revisionService
	media    mediaStore
	exporter *export.Service
	authpw   *authpw.Service
	email    *email.Service
}

func New(cfg config.Config, dataStore dataStore, sessions refreshStore, searchSvc searchIndex, revSvc revisionService) *Service {
	s := &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		search:   searchSvc,
		rev:      revSvc,
	}
	s.exporter = export.NewService(exportStore{data: dataStore})
	return s
}

// SetAuthPassword enables the email/password flows. Email may be nil; the
// signup and reset handlers then return dev bypass tokens instead of sending.
func (s *Service) SetAuthPassword(authSvc *authpw.Service, emailSvc *email.Service) {
	s.authpw = authSvc
	s.email = emailSvc
}

// SetMedia enables object storage. Media routes answer 503 until it is set.
func (s *Service) SetMedia(m mediaStore) {
	s.media = m
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

func (s *Service) EmailService() *email.Service {
	return s.email
}

func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) SessionPing(ctx context.Context) error {
	return s.sessions.Ping(ctx)
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// --- sessions ---

func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	session, err := s.issueSession(ctx, user)
	if err != nil {
		return Session{}, err
	}
	s.record(ctx, session, activity.TypeSignedIn, nil, "")
	return session, nil
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	partial, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	// The session store only carries the user ID reliably; refetch the row so
	// role changes take effect on the next rotation.
	user, err := s.store.GetUserByID(ctx, partial.ID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		Role: user.Role,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, now.Add(s.cfg.RefreshTTL)); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	if session.UserID != "" {
		s.record(ctx, session, activity.TypeSignedOut, nil, "")
	}
	return nil
}

// --- ideas ---

func (s *Service) ListIdeas(ctx context.Context, page int) (map[string]any, error) {
	total, err := s.store.CountIdeas(ctx)
	if err != nil {
		return nil, err
	}
	pages := pagination.New(total, pagination.IdeasPerPage, page, pagination.IdeasPagesToLead)
	ideas, err := s.store.ListIdeas(ctx, pages.End-pages.Start, pages.Start)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(ideas))
	for _, idea := range ideas {
		count, err := s.store.IdeaThoughtCount(ctx, idea.Slug)
		if err != nil {
			return nil, err
		}
		payload := ideaPayload(idea, true)
		payload["thoughtCount"] = count
		items = append(items, payload)
	}
	return map[string]any{"ideas": items, "pagination": pages}, nil
}

func (s *Service) GetIdea(ctx context.Context, ideaSlug string, page int) (map[string]any, error) {
	idea, err := s.store.GetIdea(ctx, ideaSlug)
	if err != nil {
		return nil, err
	}

	filter := store.ThoughtFilter{
		IdeaSlug:   idea.Slug,
		PublicOnly: true,
		OrderBy:    "date_published",
		Desc:       true,
	}
	total, err := s.store.CountThoughts(ctx, filter)
	if err != nil {
		return nil, err
	}
	pages := pagination.New(total, pagination.ThoughtsPerPage, page, pagination.ThoughtsPagesToLead)
	filter.Limit = pages.End - pages.Start
	filter.Offset = pages.Start
	thoughts, err := s.store.ListThoughts(ctx, filter)
	if err != nil {
		return nil, err
	}

	payload := ideaPayload(idea, false)
	payload["thoughts"] = thoughtTeasers(thoughts)
	payload["pagination"] = pages
	payload["next"] = adjacentIdeaPayload(s.store.NextIdea(ctx, idea.Order))
	payload["prev"] = adjacentIdeaPayload(s.store.PrevIdea(ctx, idea.Order))
	return payload, nil
}

func adjacentIdeaPayload(idea store.Idea, err error) map[string]any {
	if err != nil {
		return nil
	}
	return map[string]any{"slug": idea.Slug, "name": idea.Name}
}

func (s *Service) CreateIdea(ctx context.Context, session Session, name, description, icon string) (map[string]any, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("name is required")
	}
	base := slug.Make(name, slug.DefaultMaxLen)
	if base == "" {
		return nil, validationError("name must contain letters or digits")
	}
	ideaSlug, err := s.uniqueSlug(ctx, base, s.store.IdeaSlugTaken)
	if err != nil {
		return nil, err
	}

	idea, err := s.store.InsertIdea(ctx, store.Idea{
		Slug:        ideaSlug,
		Name:        name,
		Description: markup.Sanitize(description, markup.HighlightTags),
		Icon:        icon,
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, session, activity.TypeIdeaCreated, map[string]string{"name": idea.Name}, "/ideas/"+idea.Slug)
	s.indexIdea(idea)
	return ideaPayload(idea, false), nil
}

func (s *Service) UpdateIdea(ctx context.Context, session Session, ideaSlug, name, description, icon string) (map[string]any, error) {
	idea, err := s.store.GetIdea(ctx, ideaSlug)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("name is required")
	}
	description = markup.Sanitize(description, markup.HighlightTags)
	if err := s.store.UpdateIdea(ctx, idea.Slug, name, description, icon); err != nil {
		return nil, err
	}

	idea.Name = name
	idea.Description = description
	idea.Icon = icon
	s.record(ctx, session, activity.TypeIdeaEdited, map[string]string{"name": name}, "/ideas/"+idea.Slug)
	s.indexIdea(idea)
	return ideaPayload(idea, false), nil
}

// DeleteIdea refuses while any thought still points at the idea; the count
// and the delete run in one transaction in the store. The icon object is
// removed best-effort afterwards.
func (s *Service) DeleteIdea(ctx context.Context, session Session, ideaSlug string) error {
	idea, err := s.store.GetIdea(ctx, ideaSlug)
	if err != nil {
		return err
	}
	if err := s.store.DeleteIdea(ctx, idea.Slug); err != nil {
		if errors.Is(err, store.ErrIdeaNotEmpty) {
			return domainError(422, "IDEA_NOT_EMPTY", "Idea still has thoughts; move or delete them first", nil)
		}
		return err
	}

	s.deleteMedia(ctx, idea.Icon)
	if s.search != nil {
		s.search.DeleteIdea(idea.Slug)
	}
	s.record(ctx, session, activity.TypeIdeaDeleted, map[string]string{"name": idea.Name}, "")
	return nil
}

// ReorderIdea swaps the idea's rank with its neighbor in the given direction.
// Ranks stay dense and unique; a swap in each direction is an involution.
func (s *Service) ReorderIdea(ctx context.Context, session Session, ideaSlug, direction string) (map[string]any, error) {
	idea, err := s.store.GetIdea(ctx, ideaSlug)
	if err != nil {
		return nil, err
	}

	var neighbor store.Idea
	switch direction {
	case "up":
		neighbor, err = s.store.PrevIdea(ctx, idea.Order)
	case "down":
		neighbor, err = s.store.NextIdea(ctx, idea.Order)
	default:
		return nil, validationError("direction must be up or down")
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, validationError("idea is already at the boundary")
	}
	if err != nil {
		return nil, err
	}

	if err := s.store.SwapIdeaOrder(ctx, idea.Slug, neighbor.Slug); err != nil {
		return nil, err
	}

	s.record(ctx, session, activity.TypeIdeaReordered,
		map[string]string{"name": idea.Name, "direction": direction}, "/ideas/"+idea.Slug)
	return map[string]any{
		"slug":    idea.Slug,
		"order":   neighbor.Order,
		"swapped": neighbor.Slug,
	}, nil
}

// --- thoughts ---

func (s *Service) ListThoughts(ctx context.Context, q ThoughtListQuery, publicOnly bool) (map[string]any, error) {
	filter := store.ThoughtFilter{
		IdeaSlug:   q.IdeaSlug,
		AuthorID:   q.AuthorID,
		OlderThan:  q.OlderThan,
		NewerThan:  q.NewerThan,
		Exclude:    q.Exclude,
		PublicOnly: publicOnly,
		OrderBy:    q.OrderBy,
		Desc:       q.Desc,
		Limit:      q.Count,
		Offset:     q.Slice,
	}
	if filter.OrderBy == "" {
		filter.OrderBy = "date_published"
		filter.Desc = true
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = pagination.FrontPerPage
	}

	total, err := s.store.CountThoughts(ctx, filter)
	if err != nil {
		return nil, err
	}
	thoughts, err := s.store.ListThoughts(ctx, filter)
	if err != nil {
		return nil, err
	}
	return map[string]any{"thoughts": thoughtTeasers(thoughts), "total": total}, nil
}

func (s *Service) GetThought(ctx context.Context, session Session, thoughtSlug string) (map[string]any, error) {
	thought, err := s.store.GetThought(ctx, thoughtSlug)
	if err != nil {
		return nil, err
	}
	// Drafts and trashed thoughts are invisible outside the dashboard.
	if (thought.IsDraft || thought.IsTrash) && !s.Can(session.Role, rbac.ActionWrite) {
		return nil, sql.ErrNoRows
	}

	payload := thoughtPayload(thought, false)
	if !thought.IsDraft && !thought.IsTrash {
		if next, err := s.store.AdjacentThoughts(ctx, thought.IdeaSlug, thought.DatePublished, true, 1); err == nil && len(next) > 0 {
			payload["next"] = map[string]any{"slug": next[0].Slug, "title": next[0].Title}
		}
		if prev, err := s.store.AdjacentThoughts(ctx, thought.IdeaSlug, thought.DatePublished, false, 1); err == nil && len(prev) > 0 {
			payload["prev"] = map[string]any{"slug": prev[0].Slug, "title": prev[0].Title}
		}
	}
	if author, err := s.store.GetUserByID(ctx, thought.AuthorID); err == nil {
		payload["author"] = author.DisplayName
	}
	return payload, nil
}

func (s *Service) CreateThought(ctx context.Context, session Session, title, content, ideaSlug string) (map[string]any, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, validationError("title is required")
	}
	idea, err := s.store.GetIdea(ctx, ideaSlug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, validationError("idea does not exist")
	}
	if err != nil {
		return nil, err
	}

	base := slug.Make(title, slug.DefaultMaxLen)
	if base == "" {
		return nil, validationError("title must contain letters or digits")
	}
	thoughtSlug, err := s.uniqueSlug(ctx, base, s.store.ThoughtSlugTaken)
	if err != nil {
		return nil, err
	}

	content = markup.SanitizeContent(content)
	thought := store.Thought{
		Slug:     thoughtSlug,
		Title:    title,
		Content:  content,
		IdeaSlug: idea.Slug,
		AuthorID: session.UserID,
		IsDraft:  true,
		Preview:  firstImage(content),
	}
	if err := s.store.InsertThought(ctx, thought); err != nil {
		return nil, err
	}

	if err := s.rev.EnsureRepo(thoughtSlug, snapshotOf(thought), session.UserName); err != nil {
		log.Printf(`{"msg":"revision init failed","slug":%q,"error":%q}`, thoughtSlug, err)
	}
	s.record(ctx, session, activity.TypeThoughtCreated,
		map[string]string{"title": title, "idea": idea.Name}, "/thoughts/"+thoughtSlug)
	s.indexThought(thought)
	return thoughtPayload(thought, false), nil
}

func (s *Service) UpdateThought(ctx context.Context, session Session, thoughtSlug, title, content string) (map[string]any, error) {
	thought, err := s.store.GetThought(ctx, thoughtSlug)
	if err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, validationError("title is required")
	}

	content = markup.SanitizeContent(content)
	preview := firstImage(content)
	if err := s.store.UpdateThoughtContent(ctx, thought.Slug, title, content, preview); err != nil {
		return nil, err
	}

	thought.Title = title
	thought.Content = content
	thought.Preview = preview
	thought.DateEdited = time.Now()

	if _, err := s.rev.Commit(thought.Slug, snapshotOf(thought), session.UserName, "Edit thought"); err != nil {
		log.Printf(`{"msg":"revision commit failed","slug":%q,"error":%q}`, thought.Slug, err)
	}
	s.record(ctx, session, activity.TypeThoughtEdited,
		map[string]string{"title": title}, "/thoughts/"+thought.Slug)
	s.indexThought(thought)
	return thoughtPayload(thought, false), nil
}

// PublishThought clears the draft flag. The published date is stamped only
// when the persisted row was still a draft, so re-publishing keeps the
// original date.
func (s *Service) PublishThought(ctx context.Context, session Session, thoughtSlug string) (map[string]any, error) {
	return s.setThoughtDraft(ctx, session, thoughtSlug, false, true)
}

func (s *Service) UnpublishThought(ctx context.Context, session Session, thoughtSlug string) (map[string]any, error) {
	return s.setThoughtDraft(ctx, session, thoughtSlug, true, true)
}

func (s *Service) setThoughtDraft(ctx context.Context, session Session, thoughtSlug string, isDraft, withActivity bool) (map[string]any, error) {
	thought, err := s.store.GetThought(ctx, thoughtSlug)
	if err != nil {
		return nil, err
	}

	stamp := !isDraft && thought.IsDraft
	if err := s.store.SetThoughtDraft(ctx, thought.Slug, isDraft, stamp); err != nil {
		return nil, err
	}
	if stamp {
		thought.DatePublished = time.Now()
		if err := s.rev.TagPublished(thought.Slug); err != nil {
			log.Printf(`{"msg":"revision tag failed","slug":%q,"error":%q}`, thought.Slug, err)
		}
	}
	thought.IsDraft = isDraft

	if withActivity {
		kind := activity.TypeThoughtPublished
		tokens := map[string]string{"title": thought.Title}
		if isDraft {
			kind = activity.TypeThoughtUnpublished
		} else if idea, err := s.store.GetIdea(ctx, thought.IdeaSlug); err == nil {
			tokens["idea"] = idea.Name
		}
		s.record(ctx, session, kind, tokens, "/thoughts/"+thought.Slug)
	}
	s.indexThought(thought)
	return thoughtPayload(thought, false), nil
}

func (s *Service) TrashThought(ctx context.Context, session Session, thoughtSlug string) (map[string]any, error) {
	return s.setThoughtTrash(ctx, session, thoughtSlug, true, true)
}

func (s *Service) UntrashThought(ctx context.Context, session Session, thoughtSlug string) (map[string]any, error) {
	return s.setThoughtTrash(ctx, session, thoughtSlug, false, true)
}

func (s *Service) setThoughtTrash(ctx context.Context, session Session, thoughtSlug string, isTrash, withActivity bool) (map[string]any, error) {
	thought, err := s.store.GetThought(ctx, thoughtSlug)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetThoughtTrash(ctx, thought.Slug, isTrash); err != nil {
		return nil, err
	}
	thought.IsTrash = isTrash

	if withActivity {
		kind := activity.TypeThoughtTrashed
		if !isTrash {
			kind = activity.TypeThoughtUntrashed
		}
		s.record(ctx, session, kind, map[string]string{"title": thought.Title}, "/thoughts/"+thought.Slug)
	}
	s.indexThought(thought)
	return thoughtPayload(thought, false), nil
}

func (s *Service) MoveThought(ctx context.Context, session Session, thoughtSlug, newIdeaSlug string) (map[string]any, error) {
	return s.moveThought(ctx, session, thoughtSlug, newIdeaSlug, true)
}

func (s *Service) moveThought(ctx context.Context, session Session, thoughtSlug, newIdeaSlug string, withActivity bool) (map[string]any, error) {
	thought, err := s.store.GetThought(ctx, thoughtSlug)
	if err != nil {
		return nil, err
	}
	newIdea, err := s.store.GetIdea(ctx, newIdeaSlug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, validationError("target idea does not exist")
	}
	if err != nil {
		return nil, err
	}
	oldIdea, err := s.store.GetIdea(ctx, thought.IdeaSlug)
	if err != nil {
		return nil, err
	}

	if err := s.store.MoveThought(ctx, thought.Slug, newIdea.Slug); err != nil {
		return nil, err
	}
	thought.IdeaSlug = newIdea.Slug

	if _, err := s.rev.Commit(thought.Slug, snapshotOf(thought), session.UserName, "Move thought to "+newIdea.Name); err != nil {
		log.Printf(`{"msg":"revision commit failed","slug":%q,"error":%q}`, thought.Slug, err)
	}
	if withActivity {
		s.record(ctx, session, activity.TypeThoughtMoved, map[string]string{
			"title":    thought.Title,
			"old_idea": oldIdea.Name,
			"new_idea": newIdea.Name,
		}, "/thoughts/"+thought.Slug)
	}
	s.indexThought(thought)
	return thoughtPayload(thought, false), nil
}

// DeleteThought removes the row, its revision repo, its search record, and
// any media objects no other thought still references. Media failures are
// logged, never propagated.
func (s *Service) DeleteThought(ctx context.Context, session Session, thoughtSlug string) error {
	return s.deleteThought(ctx, session, thoughtSlug, true)
}

func (s *Service) deleteThought(ctx context.Context, session Session, thoughtSlug string, withActivity bool) error {
	thought, err := s.store.GetThought(ctx, thoughtSlug)
	if err != nil {
		return err
	}
	if err := s.store.DeleteThought(ctx, thought.Slug); err != nil {
		return err
	}

	s.cleanupThoughtMedia(ctx, thought)
	if err := s.rev.Remove(thought.Slug); err != nil {
		log.Printf(`{"msg":"revision remove failed","slug":%q,"error":%q}`, thought.Slug, err)
	}
	if s.search != nil {
		s.search.DeleteThought(thought.Slug)
	}
	if withActivity {
		s.record(ctx, session, activity.TypeThoughtDeleted, map[string]string{"title": thought.Title}, "")
	}
	return nil
}

func (s *Service) cleanupThoughtMedia(ctx context.Context, thought store.Thought) {
	seen := map[string]struct{}{}
	candidates := append([]string{thought.Preview}, markup.ImageSources(thought.Content)...)
	for _, src := range candidates {
		if src == "" {
			continue
		}
		if _, dup := seen[src]; dup {
			continue
		}
		seen[src] = struct{}{}

		count, err := s.store.CountThoughtsWithImage(ctx, src, thought.Slug)
		if err != nil {
			log.Printf(`{"msg":"media reference check failed","src":%q,"error":%q}`, src, err)
			continue
		}
		if count == 0 {
			s.deleteMedia(ctx, src)
		}
	}
}

// BatchThoughts applies one action to many thoughts and records a single
// plural activity with the applied count.
func (s *Service) BatchThoughts(ctx context.Context, session Session, action string, slugs []string, targetIdea string) (map[string]any, error) {
	if _, ok := allowedBatchActions[action]; !ok {
		return nil, validationError("unknown batch action")
	}
	if len(slugs) == 0 {
		return nil, validationError("ids is required")
	}

	var newIdeaName string
	if action == "move" {
		idea, err := s.store.GetIdea(ctx, targetIdea)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, validationError("target idea does not exist")
		}
		if err != nil {
			return nil, err
		}
		newIdeaName = idea.Name
	}

	applied := 0
	for _, thoughtSlug := range slugs {
		var err error
		switch action {
		case "publish":
			_, err = s.setThoughtDraft(ctx, session, thoughtSlug, false, false)
		case "unpublish":
			_, err = s.setThoughtDraft(ctx, session, thoughtSlug, true, false)
		case "trash":
			_, err = s.setThoughtTrash(ctx, session, thoughtSlug, true, false)
		case "untrash":
			_, err = s.setThoughtTrash(ctx, session, thoughtSlug, false, false)
		case "move":
			_, err = s.moveThought(ctx, session, thoughtSlug, targetIdea, false)
		case "delete":
			err = s.deleteThought(ctx, session, thoughtSlug, false)
		}
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		applied++
	}

	tokens := map[string]string{"length": strconv.Itoa(applied)}
	kind := map[string]activity.Type{
		"publish":   activity.TypeThoughtsPublished,
		"unpublish": activity.TypeThoughtsUnpublished,
		"trash":     activity.TypeThoughtsTrashed,
		"untrash":   activity.TypeThoughtsUntrashed,
		"move":      activity.TypeThoughtsMoved,
		"delete":    activity.TypeThoughtsDeleted,
	}[action]
	if action == "move" {
		tokens["new_idea"] = newIdeaName
	}
	s.record(ctx, session, kind, tokens, "")

	return map[string]any{"action": action, "applied": applied}, nil
}

func (s *Service) ThoughtHistory(ctx context.Context, thoughtSlug string, limit int) (map[string]any, error) {
	if _, err := s.store.GetThought(ctx, thoughtSlug); err != nil {
		return nil, err
	}
	commits, err := s.rev.History(thoughtSlug, limit)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(commits))
	for _, commit := range commits {
		items = append(items, map[string]any{
			"hash":      commit.Hash,
			"message":   commit.Message,
			"author":    commit.Author,
			"createdAt": commit.CreatedAt,
		})
	}
	return map[string]any{"slug": thoughtSlug, "history": items}, nil
}

func (s *Service) ThoughtRevision(ctx context.Context, thoughtSlug, hash string) (map[string]any, error) {
	if _, err := s.store.GetThought(ctx, thoughtSlug); err != nil {
		return nil, err
	}
	snapshot, err := s.rev.GetByHash(thoughtSlug, hash)
	if err != nil {
		return nil, notFoundError("revision not found")
	}
	return map[string]any{
		"slug":    thoughtSlug,
		"hash":    hash,
		"title":   snapshot.Title,
		"content": snapshot.Content,
		"idea":    snapshot.IdeaSlug,
	}, nil
}

func (s *Service) ExportThought(ctx context.Context, thoughtSlug, format string) (*export.Result, error) {
	if format == "" {
		format = string(export.FormatPDF)
	}
	if format != string(export.FormatPDF) {
		return nil, validationError("unsupported export format")
	}
	result, err := s.exporter.Export(ctx, export.Request{Slug: thoughtSlug, Format: export.FormatPDF})
	if err != nil {
		if errors.Is(err, export.ErrContentUnavailable) {
			return nil, notFoundError("thought not found")
		}
		return nil, err
	}
	return result, nil
}

// --- highlights ---

func (s *Service) ListHighlights(ctx context.Context, page int) (map[string]any, error) {
	total, err := s.store.CountHighlights(ctx)
	if err != nil {
		return nil, err
	}
	pages := pagination.New(total, pagination.HighlightsPerPage, page, pagination.HighlightsPagesToLead)
	highlights, err := s.store.ListHighlights(ctx, pages.End-pages.Start, pages.Start)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(highlights))
	for _, h := range highlights {
		items = append(items, highlightPayload(h))
	}
	return map[string]any{"highlights": items, "pagination": pages}, nil
}

func (s *Service) CreateHighlight(ctx context.Context, session Session, title, description, url, icon string) (map[string]any, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, validationError("title is required")
	}

	highlight := store.Highlight{
		ID:          util.NewID("hl"),
		Title:       title,
		Description: markup.Sanitize(description, markup.HighlightTags),
		URL:         url,
		Icon:        icon,
	}
	if err := s.store.InsertHighlight(ctx, highlight); err != nil {
		return nil, err
	}

	s.record(ctx, session, activity.TypeHighlightCreated, map[string]string{"title": title}, "/highlights")
	s.indexHighlight(highlight)
	return highlightPayload(highlight), nil
}

func (s *Service) UpdateHighlight(ctx context.Context, session Session, id, title, description, url, icon string) (map[string]any, error) {
	highlight, err := s.store.GetHighlight(ctx, id)
	if err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, validationError("title is required")
	}
	description = markup.Sanitize(description, markup.HighlightTags)
	if err := s.store.UpdateHighlight(ctx, id, title, description, url, icon); err != nil {
		return nil, err
	}

	highlight.Title = title
	highlight.Description = description
	highlight.URL = url
	highlight.Icon = icon
	s.record(ctx, session, activity.TypeHighlightEdited, map[string]string{"title": title}, "/highlights")
	s.indexHighlight(highlight)
	return highlightPayload(highlight), nil
}

func (s *Service) DeleteHighlight(ctx context.Context, session Session, id string) error {
	highlight, err := s.store.GetHighlight(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteHighlight(ctx, id); err != nil {
		return err
	}

	s.deleteMedia(ctx, highlight.Icon)
	if s.search != nil {
		s.search.DeleteHighlight(id)
	}
	s.record(ctx, session, activity.TypeHighlightDeleted, map[string]string{"title": highlight.Title}, "")
	return nil
}

// --- reading list ---

func (s *Service) ListReadingList(ctx context.Context, wishlist *bool, page int) (map[string]any, error) {
	total, err := s.store.CountReadingList(ctx, wishlist)
	if err != nil {
		return nil, err
	}
	pages := pagination.New(total, pagination.ReadingListPerPage, page, pagination.ReadingListPagesToLead)
	list, err := s.store.ListReadingList(ctx, wishlist, pages.End-pages.Start, pages.Start)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(list))
	for _, item := range list {
		items = append(items, readingPayload(item))
	}
	return map[string]any{"items": items, "pagination": pages}, nil
}

func (s *Service) AddReadingListItem(ctx context.Context, session Session, title, author, url, cover string, wishlist bool) (map[string]any, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, validationError("title is required")
	}

	item := store.ReadingListItem{
		ID:       util.NewID("read"),
		Title:    title,
		Author:   author,
		URL:      url,
		Cover:    cover,
		Wishlist: wishlist,
	}
	if err := s.store.InsertReadingListItem(ctx, item); err != nil {
		return nil, err
	}
	s.record(ctx, session, activity.TypeReadingListAdded, map[string]string{"title": title}, "/reading-list")
	return readingPayload(item), nil
}

func (s *Service) UpdateReadingListItem(ctx context.Context, session Session, id, title, author, url, cover string) (map[string]any, error) {
	item, err := s.store.GetReadingListItem(ctx, id)
	if err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, validationError("title is required")
	}
	if err := s.store.UpdateReadingListItem(ctx, id, title, author, url, cover); err != nil {
		return nil, err
	}

	item.Title = title
	item.Author = author
	item.URL = url
	item.Cover = cover
	s.record(ctx, session, activity.TypeReadingListEdited, map[string]string{"title": title}, "/reading-list")
	return readingPayload(item), nil
}

func (s *Service) SetReadingListFavorite(ctx context.Context, session Session, id string, favorite bool) (map[string]any, error) {
	item, err := s.store.GetReadingListItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetReadingListFavorite(ctx, id, favorite); err != nil {
		return nil, err
	}
	item.Favorite = favorite

	kind := activity.TypeReadingListFavorited
	if !favorite {
		kind = activity.TypeReadingListUnfavorited
	}
	s.record(ctx, session, kind, map[string]string{"title": item.Title}, "/reading-list")
	return readingPayload(item), nil
}

// FinishReadingListItem moves a wishlist entry to the read shelf and stamps
// the finish date.
func (s *Service) FinishReadingListItem(ctx context.Context, session Session, id string) (map[string]any, error) {
	item, err := s.store.GetReadingListItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.FinishReadingListItem(ctx, id); err != nil {
		return nil, err
	}
	item.Wishlist = false
	now := time.Now()
	item.DatePublished = &now

	s.record(ctx, session, activity.TypeReadingListFinished, map[string]string{"title": item.Title}, "/reading-list")
	return readingPayload(item), nil
}

func (s *Service) DeleteReadingListItem(ctx context.Context, session Session, id string) error {
	item, err := s.store.GetReadingListItem(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteReadingListItem(ctx, id); err != nil {
		return err
	}

	s.deleteMedia(ctx, item.Cover)
	s.record(ctx, session, activity.TypeReadingListDeleted, map[string]string{"title": item.Title}, "")
	return nil
}

// --- tasks ---

func (s *Service) ListTasks(ctx context.Context, includeCompleted bool) (map[string]any, error) {
	tasks, err := s.store.ListTasks(ctx, includeCompleted)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, taskPayload(task))
	}
	return map[string]any{"tasks": items}, nil
}

func (s *Service) CreateTask(ctx context.Context, session Session, content, parentTaskID, priority string) (map[string]any, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, validationError("content is required")
	}
	if priority == "" {
		priority = store.PriorityLow
	}
	if _, ok := allowedTaskPriorities[priority]; !ok {
		return nil, validationError("unknown priority")
	}

	task := store.Task{
		ID:       util.NewID("task"),
		Content:  content,
		Priority: priority,
	}
	if parentTaskID != "" {
		parent, err := s.store.GetTask(ctx, parentTaskID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, validationError("parent task does not exist")
		}
		if err != nil {
			return nil, err
		}
		// Subtasks nest one level only.
		if parent.ParentTaskID != nil {
			return nil, validationError("subtasks cannot have subtasks")
		}
		task.ParentTaskID = &parent.ID
	}

	if err := s.store.InsertTask(ctx, task); err != nil {
		return nil, err
	}
	s.record(ctx, session, activity.TypeTaskCreated, map[string]string{"content": clip(content, 60)}, "/tasks")
	return taskPayload(task), nil
}

func (s *Service) UpdateTask(ctx context.Context, session Session, id, content, priority string) (map[string]any, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, validationError("content is required")
	}
	if priority == "" {
		priority = task.Priority
	}
	if _, ok := allowedTaskPriorities[priority]; !ok {
		return nil, validationError("unknown priority")
	}
	if err := s.store.UpdateTask(ctx, id, content, priority); err != nil {
		return nil, err
	}

	task.Content = content
	task.Priority = priority
	s.record(ctx, session, activity.TypeTaskEdited, map[string]string{"content": clip(content, 60)}, "/tasks")
	return taskPayload(task), nil
}

// CompleteTask stamps the completion date and resets priority to low so done
// tasks sink to the bottom of the list.
func (s *Service) CompleteTask(ctx context.Context, session Session, id string) (map[string]any, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.CompleteTask(ctx, id); err != nil {
		return nil, err
	}
	task.IsCompleted = true
	task.Priority = store.PriorityLow
	now := time.Now()
	task.DateCompleted = &now

	s.record(ctx, session, activity.TypeTaskCompleted, map[string]string{"content": clip(task.Content, 60)}, "/tasks")
	return taskPayload(task), nil
}

func (s *Service) ReopenTask(ctx context.Context, session Session, id string) (map[string]any, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.ReopenTask(ctx, id); err != nil {
		return nil, err
	}
	task.IsCompleted = false
	task.DateCompleted = nil

	s.record(ctx, session, activity.TypeTaskReopened, map[string]string{"content": clip(task.Content, 60)}, "/tasks")
	return taskPayload(task), nil
}

func (s *Service) DeleteTask(ctx context.Context, session Session, id string) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return err
	}
	s.record(ctx, session, activity.TypeTaskDeleted, map[string]string{"content": clip(task.Content, 60)}, "")
	return nil
}

// --- notes ---

func (s *Service) ListNotes(ctx context.Context) (map[string]any, error) {
	notes, err := s.store.ListNotes(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(notes))
	for _, note := range notes {
		items = append(items, notePayload(note))
	}
	return map[string]any{"notes": items}, nil
}

func (s *Service) CreateNote(ctx context.Context, session Session, content string, ideaSlugs, thoughtSlugs []string) (map[string]any, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, validationError("content is required")
	}

	note := store.Note{
		ID:      util.NewID("note"),
		Content: content,
	}
	if err := s.store.InsertNote(ctx, note); err != nil {
		return nil, err
	}
	s.record(ctx, session, activity.TypeNoteCreated, nil, "/notes")

	if len(ideaSlugs)+len(thoughtSlugs) > 0 {
		return s.SetNoteLinks(ctx, session, note.ID, ideaSlugs, thoughtSlugs)
	}
	return notePayload(note), nil
}

func (s *Service) UpdateNote(ctx context.Context, session Session, id, content string) (map[string]any, error) {
	note, err := s.store.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, validationError("content is required")
	}
	if err := s.store.UpdateNote(ctx, id, content); err != nil {
		return nil, err
	}

	note.Content = content
	s.record(ctx, session, activity.TypeNoteEdited, nil, "/notes")
	return notePayload(note), nil
}

// SetNoteLinks replaces the note's idea and thought attachments wholesale.
func (s *Service) SetNoteLinks(ctx context.Context, session Session, id string, ideaSlugs, thoughtSlugs []string) (map[string]any, error) {
	note, err := s.store.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, ideaSlug := range ideaSlugs {
		if _, err := s.store.GetIdea(ctx, ideaSlug); err != nil {
			return nil, validationError("unknown idea: " + ideaSlug)
		}
	}
	for _, thoughtSlug := range thoughtSlugs {
		if _, err := s.store.GetThought(ctx, thoughtSlug); err != nil {
			return nil, validationError("unknown thought: " + thoughtSlug)
		}
	}

	if err := s.store.SetNoteLinks(ctx, id, ideaSlugs, thoughtSlugs); err != nil {
		return nil, err
	}
	note.IdeaSlugs = ideaSlugs
	note.ThoughtSlugs = thoughtSlugs

	s.record(ctx, session, activity.TypeNoteAttached,
		map[string]string{"length": strconv.Itoa(len(ideaSlugs) + len(thoughtSlugs))}, "/notes")
	return notePayload(note), nil
}

func (s *Service) DeleteNote(ctx context.Context, session Session, id string) error {
	if _, err := s.store.GetNote(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteNote(ctx, id); err != nil {
		return err
	}
	s.record(ctx, session, activity.TypeNoteDeleted, nil, "")
	return nil
}

// --- dashboard ---

func (s *Service) Summary(ctx context.Context) (map[string]any, error) {
	counts, err := s.store.Summary(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"ideas":      counts.Ideas,
		"published":  counts.Published,
		"drafts":     counts.Drafts,
		"trash":      counts.Trash,
		"highlights": counts.Highlights,
		"reading":    counts.Reading,
		"openTasks":  counts.OpenTasks,
	}, nil
}

// DashboardThoughts lists drafts or trash for the editing views.
func (s *Service) DashboardThoughts(ctx context.Context, view string, page int) (map[string]any, error) {
	filter := store.ThoughtFilter{OrderBy: "date_edited", Desc: true}
	switch view {
	case "drafts":
		filter.DraftsOnly = true
	case "trash":
		filter.TrashOnly = true
	default:
		return nil, validationError("view must be drafts or trash")
	}

	total, err := s.store.CountThoughts(ctx, filter)
	if err != nil {
		return nil, err
	}
	pages := pagination.New(total, pagination.DashboardListPerPage, page, pagination.DashboardPagesToLead)
	filter.Limit = pages.End - pages.Start
	filter.Offset = pages.Start
	thoughts, err := s.store.ListThoughts(ctx, filter)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"view":       view,
		"thoughts":   thoughtTeasers(thoughts),
		"pagination": pages,
	}, nil
}

func (s *Service) Activities(ctx context.Context, page int) (map[string]any, error) {
	total, err := s.store.CountActivities(ctx)
	if err != nil {
		return nil, err
	}
	pages := pagination.New(total, pagination.ActivitiesPerPage, page, pagination.DashboardPagesToLead)
	entries, err := s.store.ListActivities(ctx, pages.End-pages.Start, pages.Start)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		item := map[string]any{
			"id":      entry.ID,
			"type":    entry.Type,
			"message": activity.RenderMessage(activity.Type(entry.Type), entry.Tokens),
			"date":    entry.Date,
		}
		if entry.URL != "" {
			item["url"] = entry.URL
		}
		if author, err := s.store.GetUserByID(ctx, entry.AuthorID); err == nil {
			item["author"] = author.DisplayName
		}
		items = append(items, item)
	}
	return map[string]any{"activities": items, "pagination": pages}, nil
}

// --- search ---

func (s *Service) Search(ctx context.Context, q, filterType, ideaSlug string, limit, offset int, publicOnly bool) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.search.Search(search.Query{
		Text:       q,
		FilterType: search.ResultType(filterType),
		FilterIdea: ideaSlug,
		Limit:      limit,
		Offset:     offset,
		PublicOnly: publicOnly,
	}), nil
}

// --- media ---

func (s *Service) UploadMedia(ctx context.Context, filename, contentType string, size int64, reader io.Reader) (map[string]any, error) {
	if s.media == nil {
		return nil, domainError(503, "MEDIA_UNAVAILABLE", "Media storage not configured", nil)
	}
	key, err := s.media.Upload(ctx, filename, contentType, size, reader)
	if err != nil {
		return nil, err
	}
	return map[string]any{"key": key, "url": "/api/media/" + key}, nil
}

func (s *Service) OpenMedia(ctx context.Context, key string) (io.ReadCloser, string, error) {
	if s.media == nil {
		return nil, "", domainError(503, "MEDIA_UNAVAILABLE", "Media storage not configured", nil)
	}
	return s.media.Open(ctx, key)
}

func (s *Service) deleteMedia(ctx context.Context, key string) {
	if s.media == nil || key == "" {
		return
	}
	if err := s.media.Delete(ctx, key); err != nil {
		log.Printf(`{"msg":"media delete failed","key":%q,"error":%q}`, key, err)
	}
}

// --- helpers ---

// record appends one activity row. The log is append-only and advisory, so
// failures are logged rather than surfaced to the caller.
func (s *Service) record(ctx context.Context, session Session, kind activity.Type, tokens map[string]string, url string) {
	err := s.store.InsertActivity(ctx, store.Activity{
		AuthorID: session.UserID,
		Type:     string(kind),
		Tokens:   tokens,
		URL:      url,
		Date:     time.Now(),
	})
	if err != nil {
		log.Printf(`{"msg":"activity insert failed","type":%q,"error":%q}`, kind, err)
	}
}

func (s *Service) uniqueSlug(ctx context.Context, base string, taken func(context.Context, string) (bool, error)) (string, error) {
	var lookupErr error
	unique := slug.Unique(base, func(candidate string) bool {
		if lookupErr != nil {
			return false
		}
		exists, err := taken(ctx, candidate)
		if err != nil {
			lookupErr = err
			return false
		}
		return exists
	})
	if lookupErr != nil {
		return "", lookupErr
	}
	return unique, nil
}

func (s *Service) indexThought(t store.Thought) {
	if s.search == nil {
		return
	}
	s.search.IndexThought(search.ThoughtRecord{
		ID:       t.Slug,
		Title:    t.Title,
		Content:  t.Content,
		IdeaSlug: t.IdeaSlug,
		IsDraft:  t.IsDraft,
		IsTrash:  t.IsTrash,
	})
}

func (s *Service) indexIdea(i store.Idea) {
	if s.search == nil {
		return
	}
	s.search.IndexIdea(search.IdeaRecord{
		ID:          i.Slug,
		Name:        i.Name,
		Description: i.Description,
	})
}

func (s *Service) indexHighlight(h store.Highlight) {
	if s.search == nil {
		return
	}
	s.search.IndexHighlight(search.HighlightRecord{
		ID:          h.ID,
		Title:       h.Title,
		Description: h.Description,
	})
}

func snapshotOf(t store.Thought) revisions.Snapshot {
	return revisions.Snapshot{
		Title:    t.Title,
		Content:  t.Content,
		IdeaSlug: t.IdeaSlug,
	}
}

func firstImage(content string) string {
	sources := markup.ImageSources(content)
	if len(sources) == 0 {
		return ""
	}
	return sources[0]
}

func clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// --- payloads ---

func ideaPayload(idea store.Idea, teaser bool) map[string]any {
	description := idea.Description
	if teaser {
		description = markup.Truncate(description, shortTeaserLength, markup.HighlightTags)
	}
	return map[string]any{
		"slug":        idea.Slug,
		"name":        idea.Name,
		"description": description,
		"icon":        idea.Icon,
		"order":       idea.Order,
		"createdAt":   idea.CreatedAt,
	}
}

func thoughtPayload(t store.Thought, teaser bool) map[string]any {
	payload := map[string]any{
		"slug":          t.Slug,
		"title":         t.Title,
		"idea":          t.IdeaSlug,
		"isDraft":       t.IsDraft,
		"isTrash":       t.IsTrash,
		"datePublished": t.DatePublished,
		"dateEdited":    t.DateEdited,
		"preview":       t.Preview,
	}
	if teaser {
		payload["teaser"] = markup.Truncate(t.Content, teaserLength, markup.ThoughtTags)
	} else {
		payload["content"] = t.Content
	}
	return payload
}

func thoughtTeasers(thoughts []store.Thought) []map[string]any {
	items := make([]map[string]any, 0, len(thoughts))
	for _, t := range thoughts {
		items = append(items, thoughtPayload(t, true))
	}
	return items
}

func highlightPayload(h store.Highlight) map[string]any {
	return map[string]any{
		"id":            h.ID,
		"title":         h.Title,
		"description":   h.Description,
		"url":           h.URL,
		"icon":          h.Icon,
		"datePublished": h.DatePublished,
	}
}

func readingPayload(item store.ReadingListItem) map[string]any {
	return map[string]any{
		"id":            item.ID,
		"title":         item.Title,
		"author":        item.Author,
		"url":           item.URL,
		"cover":         item.Cover,
		"wishlist":      item.Wishlist,
		"favorite":      item.Favorite,
		"dateAdded":     item.DateAdded,
		"datePublished": item.DatePublished,
	}
}

func taskPayload(task store.Task) map[string]any {
	return map[string]any{
		"id":            task.ID,
		"content":       task.Content,
		"parentTaskId":  task.ParentTaskID,
		"priority":      task.Priority,
		"isCompleted":   task.IsCompleted,
		"dateCreated":   task.DateCreated,
		"dateCompleted": task.DateCompleted,
	}
}

func notePayload(note store.Note) map[string]any {
	return map[string]any{
		"id":          note.ID,
		"content":     note.Content,
		"dateCreated": note.DateCreated,
		"dateEdited":  note.DateEdited,
		"ideas":       note.IdeaSlugs,
		"thoughts":    note.ThoughtSlugs,
	}
}

// exportStore adapts the data store to the exporter's narrower view.
type exportStore struct {
	data dataStore
}

func (e exportStore) GetExportThought(ctx context.Context, thoughtSlug string) (export.ThoughtInfo, error) {
	thought, err := e.data.GetThought(ctx, thoughtSlug)
	if err != nil {
		return export.ThoughtInfo{}, err
	}
	info := export.ThoughtInfo{
		Slug:          thought.Slug,
		Title:         thought.Title,
		Content:       thought.Content,
		IdeaSlug:      thought.IdeaSlug,
		DatePublished: thought.DatePublished,
	}
	if author, err := e.data.GetUserByID(ctx, thought.AuthorID); err == nil {
		info.Author = author.DisplayName
	}
	return info, nil
}

func (e exportStore) GetExportIdea(ctx context.Context, ideaSlug string) (export.IdeaInfo, error) {
	idea, err := e.data.GetIdea(ctx, ideaSlug)
	if err != nil {
		return export.IdeaInfo{}, err
	}
	return export.IdeaInfo{Slug: idea.Slug, Name: idea.Name}, nil
}
