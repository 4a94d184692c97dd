package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"transparencia-backend/shared/catalog"
	"transparencia-backend/shared/database/models/participation"
	"transparencia-backend/shared/logger"
	"transparencia-backend/shared/utils/query"
	utils "transparencia-backend/shared/utils/auth"
)

const folioAttempts = 5

// Notifier mails citizens and staff about inbox activity
type Notifier interface {
	QueueConfirmation(m *participation.Message, area string)
	QueueInternalNotification(m *participation.Message, area string)
	QueueResponse(m *participation.Message, area string)
}

// Broadcaster pushes inbox events to connected administrators
type Broadcaster interface {
	Broadcast(event Event)
}

// MessageObserver counts received messages
type MessageObserver interface {
	RecordMessage(channel string)
}

// NewMessage is a citizen submission
type NewMessage struct {
	FullName   string `json:"full_name" binding:"required,max=200"`
	Email      string `json:"email" binding:"required,email,max=100"`
	Subject    string `json:"subject" binding:"required,max=200"`
	Body       string `json:"body" binding:"required,max=5000"`
	Channel    string `json:"channel" binding:"omitempty,oneof=web email telefono presencial"`
	TargetArea string `json:"target_area" binding:"max=200"`
}

// Receipt is returned to the citizen after a submission
type Receipt struct {
	Folio     string    `json:"folio"`
	CreatedAt time.Time `json:"created_at"`
}

// FolioStatus is the public view of a message looked up by folio
type FolioStatus struct {
	Folio       string     `json:"folio"`
	Subject     string     `json:"subject"`
	Status      string     `json:"status"`
	TargetArea  string     `json:"target_area,omitempty"`
	Response    string     `json:"response,omitempty"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// MessageFilter narrows the admin inbox listing
type MessageFilter struct {
	Status  string
	Channel string
	Search  string
	Page    int
	Limit   int
}

// CountBucket is one group of a message count
type CountBucket struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// MessageStats summarizes the inbox
type MessageStats struct {
	Total        int64         `json:"total"`
	Pending      int64         `json:"pending"`
	InProgress   int64         `json:"in_progress"`
	Answered     int64         `json:"answered"`
	Closed       int64         `json:"closed"`
	ByChannel    []CountBucket `json:"by_channel"`
	ByTargetArea []CountBucket `json:"by_target_area"`
}

// MessageService runs the citizen-participation inbox
type MessageService struct {
	db          *gorm.DB
	notifier    Notifier
	broadcaster Broadcaster
	observer    MessageObserver
	defaultArea string
	now         func() time.Time
}

// NewMessageService creates the service. notifier, broadcaster and observer
// may be nil.
func NewMessageService(db *gorm.DB, notifier Notifier, broadcaster Broadcaster, observer MessageObserver, defaultArea string) *MessageService {
	return &MessageService{
		db:          db,
		notifier:    notifier,
		broadcaster: broadcaster,
		observer:    observer,
		defaultArea: defaultArea,
		now:         time.Now,
	}
}

// Create records a citizen message under a fresh folio, then acknowledges it
// by mail and announces it to connected administrators. Mail and websocket
// failures never fail the submission.
func (s *MessageService) Create(ctx context.Context, in NewMessage, client ClientInfo) (*Receipt, error) {
	if err := validateNewMessage(&in); err != nil {
		return nil, err
	}

	msg := &participation.Message{
		FullName:   in.FullName,
		Email:      in.Email,
		Subject:    in.Subject,
		Body:       in.Body,
		Channel:    in.Channel,
		TargetArea: in.TargetArea,
		Status:     participation.StatusPending,
		IPAddress:  truncate(client.IP, 45),
		UserAgent:  truncate(client.UserAgent, 500),
	}

	var err error
	for i := 0; i < folioAttempts; i++ {
		msg.ID = uuid.Nil
		if msg.Folio, err = s.newFolio(); err != nil {
			return nil, err
		}
		if err = s.db.WithContext(ctx).Create(msg).Error; err == nil {
			break
		}
		if !s.folioTaken(ctx, msg.Folio) {
			return nil, fmt.Errorf("save message: %w", err)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("allocate folio: %w", err)
	}

	logger.L().Info("citizen message received", "folio", msg.Folio, "channel", msg.Channel)
	if s.observer != nil {
		s.observer.RecordMessage(msg.Channel)
	}
	if s.notifier != nil {
		area := s.area(msg)
		s.notifier.QueueConfirmation(msg, area)
		s.notifier.QueueInternalNotification(msg, area)
	}
	s.broadcast(EventMessageCreated, msg)

	return &Receipt{Folio: msg.Folio, CreatedAt: msg.CreatedAt}, nil
}

// ByFolio returns the public status of a message
func (s *MessageService) ByFolio(ctx context.Context, folio string) (*FolioStatus, error) {
	var msg participation.Message
	err := s.db.WithContext(ctx).Where("folio = ?", strings.ToUpper(strings.TrimSpace(folio))).First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &catalog.NotFoundError{Entity: "message with folio", ID: folio}
	}
	if err != nil {
		return nil, fmt.Errorf("find message %s: %w", folio, err)
	}
	return &FolioStatus{
		Folio:       msg.Folio,
		Subject:     msg.Subject,
		Status:      msg.Status,
		TargetArea:  msg.TargetArea,
		Response:    msg.Response,
		RespondedAt: msg.RespondedAt,
		CreatedAt:   msg.CreatedAt,
	}, nil
}

// List returns a page of messages, newest first
func (s *MessageService) List(ctx context.Context, f MessageFilter) ([]participation.Message, query.PaginationResponse, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}

	q := s.filtered(ctx, f.Status, f.Channel)
	q = query.ApplySearch(q, f.Search, []string{"full_name", "email", "subject", "body", "folio"})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, query.PaginationResponse{}, fmt.Errorf("count messages: %w", err)
	}

	messages := make([]participation.Message, 0)
	err := query.ApplyPagination(q.Order("created_at DESC"), f.Page, f.Limit).Find(&messages).Error
	if err != nil {
		return nil, query.PaginationResponse{}, fmt.Errorf("list messages: %w", err)
	}
	return messages, query.BuildPaginationResponse(f.Page, f.Limit, total), nil
}

// Get returns a message by id
func (s *MessageService) Get(ctx context.Context, id uuid.UUID) (*participation.Message, error) {
	var msg participation.Message
	err := s.db.WithContext(ctx).First(&msg, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &catalog.NotFoundError{Entity: "message", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("load message %s: %w", id, err)
	}
	return &msg, nil
}

// Respond answers a message and mails the answer to the citizen. A message
// can only be answered once.
func (s *MessageService) Respond(ctx context.Context, id uuid.UUID, response, targetArea string, responder *uuid.UUID) (*participation.Message, error) {
	response = strings.TrimSpace(response)
	if response == "" {
		return nil, &catalog.ValidationError{Field: "response", Message: "is required"}
	}

	msg, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.Status == participation.StatusAnswered {
		return nil, &catalog.ValidationError{Field: "status", Message: "message was already answered"}
	}

	now := s.now()
	updates := map[string]interface{}{
		"response":     response,
		"status":       participation.StatusAnswered,
		"responded_at": now,
		"responded_by": responder,
	}
	if area := strings.TrimSpace(targetArea); area != "" {
		updates["target_area"] = area
	}

	res := s.db.WithContext(ctx).Model(&participation.Message{}).
		Where("id = ? AND status <> ?", id, participation.StatusAnswered).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("respond message %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, &catalog.ValidationError{Field: "status", Message: "message was already answered"}
	}

	msg, err = s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	logger.L().Info("citizen message answered", "folio", msg.Folio)
	if s.notifier != nil {
		s.notifier.QueueResponse(msg, s.area(msg))
	}
	s.broadcast(EventMessageUpdated, msg)
	return msg, nil
}

// ChangeStatus moves a message to status
func (s *MessageService) ChangeStatus(ctx context.Context, id uuid.UUID, status string) (*participation.Message, error) {
	if !participation.ValidStatus(status) {
		return nil, &catalog.ValidationError{Field: "status", Message: "must be one of pendiente, en_proceso, respondido, cerrado"}
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Model(&participation.Message{}).Where("id = ?", id).Update("status", status).Error
	if err != nil {
		return nil, fmt.Errorf("change message status %s: %w", id, err)
	}

	msg, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.broadcast(EventMessageUpdated, msg)
	return msg, nil
}

// Delete removes a message permanently
func (s *MessageService) Delete(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&participation.Message{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete message %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return &catalog.NotFoundError{Entity: "message", ID: id}
	}
	logger.L().Info("citizen message deleted", "message_id", id)
	s.broadcast(EventMessageDeleted, map[string]string{"id": id.String()})
	return nil
}

// Stats counts messages per status, channel and target area
func (s *MessageService) Stats(ctx context.Context) (*MessageStats, error) {
	st := &MessageStats{ByChannel: []CountBucket{}, ByTargetArea: []CountBucket{}}

	var perStatus []CountBucket
	err := s.db.WithContext(ctx).Model(&participation.Message{}).
		Select("status AS key, COUNT(*) AS count").
		Group("status").
		Scan(&perStatus).Error
	if err != nil {
		return nil, fmt.Errorf("count messages by status: %w", err)
	}
	for _, b := range perStatus {
		st.Total += b.Count
		switch b.Key {
		case participation.StatusPending:
			st.Pending = b.Count
		case participation.StatusInProgress:
			st.InProgress = b.Count
		case participation.StatusAnswered:
			st.Answered = b.Count
		case participation.StatusClosed:
			st.Closed = b.Count
		}
	}

	err = s.db.WithContext(ctx).Model(&participation.Message{}).
		Select("channel AS key, COUNT(*) AS count").
		Group("channel").
		Order("count DESC").Order("channel").
		Scan(&st.ByChannel).Error
	if err != nil {
		return nil, fmt.Errorf("count messages by channel: %w", err)
	}

	err = s.db.WithContext(ctx).Model(&participation.Message{}).
		Select("target_area AS key, COUNT(*) AS count").
		Where("target_area IS NOT NULL AND target_area <> ''").
		Group("target_area").
		Order("count DESC").Order("target_area").
		Scan(&st.ByTargetArea).Error
	if err != nil {
		return nil, fmt.Errorf("count messages by area: %w", err)
	}
	return st, nil
}

// Recent returns the latest limit messages
func (s *MessageService) Recent(ctx context.Context, limit int) ([]participation.Message, error) {
	if limit < 1 || limit > 100 {
		limit = 10
	}
	messages := make([]participation.Message, 0, limit)
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	return messages, nil
}

// Count returns the number of messages matching status and channel
func (s *MessageService) Count(ctx context.Context, status, channel string) (int64, error) {
	var n int64
	err := s.filtered(ctx, status, channel).Count(&n).Error
	return n, err
}

func (s *MessageService) filtered(ctx context.Context, status, channel string) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&participation.Message{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if channel != "" {
		q = q.Where("channel = ?", channel)
	}
	return q
}

// newFolio builds MSG-<last 6 digits of the unix millis>-<3 random digits>
func (s *MessageService) newFolio() (string, error) {
	suffix, err := utils.GenerateNumericCode(3)
	if err != nil {
		return "", fmt.Errorf("allocate folio: %w", err)
	}
	return fmt.Sprintf("MSG-%06d-%s", s.now().UnixMilli()%1000000, suffix), nil
}

func (s *MessageService) folioTaken(ctx context.Context, folio string) bool {
	var n int64
	s.db.WithContext(ctx).Model(&participation.Message{}).Where("folio = ?", folio).Count(&n)
	return n > 0
}

func (s *MessageService) area(m *participation.Message) string {
	if m.TargetArea != "" {
		return m.TargetArea
	}
	return s.defaultArea
}

func (s *MessageService) broadcast(eventType string, data interface{}) {
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(NewEvent(eventType, data))
	}
}

func validateNewMessage(in *NewMessage) error {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Subject = strings.TrimSpace(in.Subject)
	in.Body = strings.TrimSpace(in.Body)
	in.TargetArea = strings.TrimSpace(in.TargetArea)
	in.Channel = strings.ToLower(strings.TrimSpace(in.Channel))
	if in.Channel == "" {
		in.Channel = participation.DefaultChannel
	}

	if err := utils.FirstInvalid(
		utils.ValidateLength("full_name", in.FullName, 1, 200),
		utils.ValidateEmail("email", in.Email),
		utils.ValidateLength("subject", in.Subject, 1, 200),
		utils.ValidateLength("body", in.Body, 1, 5000),
		utils.ValidateLength("target_area", in.TargetArea, 0, 200),
	); err != nil {
		return err
	}
	if !participation.ValidChannel(in.Channel) {
		return &catalog.ValidationError{Field: "channel", Message: "must be one of web, email, telefono, presencial"}
	}
	return nil
}

// ClientInfo identifies who sent a message
type ClientInfo struct {
	IP        string
	UserAgent string
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
