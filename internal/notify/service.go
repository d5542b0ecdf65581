package notify

import (
	"context"
	"errors"
	"time"

	"contractdesk/internal/events"
	"contractdesk/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("notification not found")

// Defaults are used for event notifications when no stored template
// overrides the key.
var Defaults = []models.NotificationTemplate{
	{Key: events.ContractSubmitted, Title: "Contract submitted", Body: "Contract {{reference}} was submitted for approval."},
	{Key: events.ContractApproved, Title: "Contract approved", Body: "Contract {{reference}} was approved.", Important: true},
	{Key: events.ContractRejected, Title: "Contract rejected", Body: "Contract {{reference}} was rejected: {{reason}}", Important: true},
	{Key: events.TemplateSubmitted, Title: "Template awaiting review", Body: "Template {{name}} v{{version}} was submitted for review."},
	{Key: events.TemplateApproved, Title: "Template approved", Body: "Template {{name}} v{{version}} was approved."},
	{Key: events.TemplateRejected, Title: "Template rejected", Body: "Template {{name}} v{{version}} was rejected: {{reason}}", Important: true},
	{Key: events.ApprovalRedeemed, Title: "External decision recorded", Body: "{{party}} chose to {{decision}} contract {{reference}}.", Important: true},
	{Key: events.UserRoleChanged, Title: "Role changed", Body: "Your role is now {{role}}."},
}

// Service writes notifications and publishes the matching domain events.
type Service struct {
	DB     *gorm.DB
	Events events.Publisher
	Log    *zap.SugaredLogger
	now    func() time.Time
}

func NewService(db *gorm.DB, pub events.Publisher, lg *zap.SugaredLogger) *Service {
	if pub == nil {
		pub = events.NoopPublisher{}
	}
	if lg == nil {
		lg = zap.NewNop().Sugar()
	}
	return &Service{DB: db, Events: pub, Log: lg, now: time.Now}
}

// SeedDefaults inserts the default templates that are not stored yet.
func SeedDefaults(ctx context.Context, db *gorm.DB) error {
	for _, t := range Defaults {
		t := t
		if err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&t).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) Create(ctx context.Context, n *models.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	return s.DB.WithContext(ctx).Create(n).Error
}

// Template returns the stored template for key, falling back to Defaults.
func (s *Service) Template(ctx context.Context, key string) (models.NotificationTemplate, error) {
	var t models.NotificationTemplate
	err := s.DB.WithContext(ctx).Where(&models.NotificationTemplate{Key: key}).First(&t).Error
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return t, err
	}
	for _, d := range Defaults {
		if d.Key == key {
			return d, nil
		}
	}
	return t, ErrNotFound
}

// FromTemplate renders the template strictly and stores the notification.
func (s *Service) FromTemplate(ctx context.Context, key string, userID *string, vars map[string]string, link string, expiresAt *time.Time) (models.Notification, error) {
	t, err := s.Template(ctx, key)
	if err != nil {
		return models.Notification{}, err
	}
	title, err := RenderStrict(t.Title, vars)
	if err != nil {
		return models.Notification{}, err
	}
	body, err := RenderStrict(t.Body, vars)
	if err != nil {
		return models.Notification{}, err
	}
	n := models.Notification{UserID: userID, Title: title, Message: body, Link: link, IsImportant: t.Important, ExpiresAt: expiresAt}
	return n, s.Create(ctx, &n)
}

// Event describes a domain change worth telling someone about.
type Event struct {
	Type        string
	ActorID     string
	RecipientID string
	Link        string
	Key         string
	Vars        map[string]string
	Data        map[string]any
}

// Emit notifies the recipient and publishes the event. Failures are logged,
// never returned: the originating mutation has already committed.
func (s *Service) Emit(ctx context.Context, ev Event) {
	if ev.RecipientID != "" {
		t, err := s.Template(ctx, ev.Type)
		if err != nil {
			s.Log.Warnw("notification template lookup failed", "event", ev.Type, "error", err)
		} else {
			title, _ := Render(t.Title, ev.Vars)
			body, missing := Render(t.Body, ev.Vars)
			if len(missing) > 0 {
				s.Log.Warnw("notification template variables missing", "event", ev.Type, "missing", missing)
			}
			uid := ev.RecipientID
			n := models.Notification{UserID: &uid, Title: title, Message: body, Link: ev.Link, IsImportant: t.Important}
			if err := s.Create(ctx, &n); err != nil {
				s.Log.Errorw("notification insert failed", "event", ev.Type, "error", err)
			}
		}
	}
	data := ev.Data
	if data == nil {
		data = map[string]any{}
	}
	for k, v := range ev.Vars {
		if _, ok := data[k]; !ok {
			data[k] = v
		}
	}
	if err := events.Emit(ctx, s.Events, events.NewEnvelope(ev.Type, ev.ActorID, data), ev.Key); err != nil {
		s.Log.Warnw("event publish failed", "event", ev.Type, "error", err)
	}
}

// View is a notification as seen by one user.
type View struct {
	models.Notification
	Read      bool `json:"read"`
	Broadcast bool `json:"broadcast"`
}

func (s *Service) visible(ctx context.Context, userID string) ([]models.Notification, error) {
	var ns []models.Notification
	err := s.DB.WithContext(ctx).
		Where("user_id = ? OR user_id IS NULL", userID).
		Order("created_at desc").
		Find(&ns).Error
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := ns[:0]
	for _, n := range ns {
		if !n.Expired(now) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *Service) receipts(ctx context.Context, userID string) (map[string]bool, error) {
	var rs []models.NotificationReceipt
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Find(&rs).Error; err != nil {
		return nil, err
	}
	read := make(map[string]bool, len(rs))
	for _, r := range rs {
		read[r.NotificationID] = true
	}
	return read, nil
}

// List returns the unexpired notifications addressed to the user or
// broadcast, newest first.
func (s *Service) List(ctx context.Context, userID string, unreadOnly bool) ([]View, error) {
	ns, err := s.visible(ctx, userID)
	if err != nil {
		return nil, err
	}
	read, err := s.receipts(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(ns))
	for _, n := range ns {
		v := View{Notification: n, Broadcast: n.UserID == nil}
		if v.Broadcast {
			v.Read = read[n.ID]
		} else {
			v.Read = n.IsRead
		}
		if unreadOnly && v.Read {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	vs, err := s.List(ctx, userID, true)
	return len(vs), err
}

func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	var n models.Notification
	if err := s.DB.WithContext(ctx).First(&n, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if n.UserID != nil && *n.UserID != userID {
		return ErrNotFound
	}
	return s.markRead(ctx, userID, n)
}

func (s *Service) markRead(ctx context.Context, userID string, n models.Notification) error {
	if n.UserID != nil {
		return s.DB.WithContext(ctx).Model(&models.Notification{}).
			Where("id = ?", n.ID).Update("is_read", true).Error
	}
	r := models.NotificationReceipt{NotificationID: n.ID, UserID: userID, ReadAt: s.now()}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&r).Error
}

// MarkAllRead marks every visible unread notification read and returns how
// many changed.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	unread, err := s.List(ctx, userID, true)
	if err != nil {
		return 0, err
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scoped := &Service{DB: tx, Events: s.Events, Log: s.Log, now: s.now}
		for _, v := range unread {
			if err := scoped.markRead(ctx, userID, v.Notification); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(unread), nil
}

// Receipts lists who has read a broadcast notification.
func (s *Service) Receipts(ctx context.Context, id string) ([]models.NotificationReceipt, error) {
	var rs []models.NotificationReceipt
	err := s.DB.WithContext(ctx).Where("notification_id = ?", id).Order("read_at asc").Find(&rs).Error
	return rs, err
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("notification_id = ?", id).Delete(&models.NotificationReceipt{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Notification{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
