package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/juju/clock"
	interf "github.com/mayukomayuko7-bot/warakado-vision/internal/interfaces"
	models "github.com/mayukomayuko7-bot/warakado-vision/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.mongodb.org/mongo-driver/bson"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var (
	directoryFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_directory_fallbacks_total",
			Help: "Directory calls that failed and fell back to the local cache or were skipped",
		},
		[]string{"operation"},
	)

	ledgerMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_ledger_mutations_total",
			Help: "Counter mutations applied to member records",
		},
		[]string{"operation"},
	)
)

var tracer = otel.Tracer("membership")

const defaultTimeout = 5 * time.Second

type Ledger struct {
	dir      interf.Directory
	cache    interf.LocalCache
	session  *Session
	ids      interf.IDGenerator
	clock    clock.Clock
	logger   *zap.Logger
	timeout  time.Duration
	notifier interf.Notifier
	audit    interf.AuditLog
}

type LedgerOption func(*Ledger)

func WithTimeout(d time.Duration) LedgerOption {
	return func(l *Ledger) {
		if d > 0 {
			l.timeout = d
		}
	}
}

func WithNotifier(n interf.Notifier) LedgerOption {
	return func(l *Ledger) { l.notifier = n }
}

func WithAuditLog(a interf.AuditLog) LedgerOption {
	return func(l *Ledger) { l.audit = a }
}

// dir может быть nil - тогда работаем только с локальным кэшем
func NewLedger(dir interf.Directory, cache interf.LocalCache, session *Session, ids interf.IDGenerator, clk clock.Clock, logger *zap.Logger, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		dir:     dir,
		cache:   cache,
		session: session,
		ids:     ids,
		clock:   clk,
		logger:  logger,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) Session() *Session {
	return l.session
}

func (l *Ledger) online() bool {
	return l.dir != nil && l.dir.Online()
}

func (l *Ledger) remote(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, l.timeout)
}

func (l *Ledger) now() time.Time {
	return l.clock.Now().UTC().Truncate(time.Millisecond)
}

// ошибка Directory: в лог и в метрику, дальше работаем локально
func (l *Ledger) fallback(operation string, err error) {
	directoryFallbacks.WithLabelValues(operation).Inc()
	l.logger.Warn("Directory call failed",
		zap.String("service", operation),
		zap.Error(err),
	)
}

// Поиск участника: сначала Directory, затем локальный кэш
func (l *Ledger) FindMember(ctx context.Context, email string) (models.Member, error) {
	ctx, span := tracer.Start(ctx, "Ledger.FindMember")
	defer span.End()

	email = models.NormalizeEmail(email)
	if email == "" {
		return models.Member{}, models.ErrMemberNotFound
	}

	if _, m, ok := l.findRemote(ctx, email); ok {
		if err := l.cache.SaveMember(ctx, m); err != nil {
			l.logger.Warn("Mirror member", zap.String("email", email), zap.Error(err))
		}
		return m, nil
	}

	members, err := l.cache.Members(ctx)
	if err != nil {
		return models.Member{}, err
	}
	for _, m := range members {
		if m.Email == email {
			return m, nil
		}
	}
	return models.Member{}, models.ErrMemberNotFound
}

func (l *Ledger) findRemote(ctx context.Context, email string) (models.Document, models.Member, bool) {
	if !l.online() {
		return models.Document{}, models.Member{}, false
	}
	rctx, cancel := l.remote(ctx)
	defer cancel()

	doc, err := l.dir.FindOne(rctx, models.CollMembers, models.Filter{"email": email})
	if err != nil {
		if !errors.Is(err, models.ErrDocumentNotFound) {
			l.fallback("FindMember", err)
		}
		return models.Document{}, models.Member{}, false
	}
	m, err := models.DecodeMember(doc)
	if err != nil {
		l.fallback("FindMember", err)
		return models.Document{}, models.Member{}, false
	}
	return doc, m, true
}

// Регистрация нового участника
func (l *Ledger) Register(ctx context.Context, info models.RegisterInfo) (models.Member, error) {
	ctx, span := tracer.Start(ctx, "Ledger.Register")
	defer span.End()

	email := models.NormalizeEmail(info.Email)
	if email == "" {
		return models.Member{}, models.ErrEmailRequired
	}
	nickname := models.NormalizeNickname(info.Nickname)
	if nickname == "" {
		nickname = models.DefaultNickname
	}

	_, err := l.FindMember(ctx, email)
	if err == nil {
		return models.Member{}, models.ErrDuplicate
	}
	if !errors.Is(err, models.ErrMemberNotFound) {
		return models.Member{}, err
	}

	member := models.Member{
		Nickname:     nickname,
		Email:        email,
		Gender:       orDefault(info.Gender, models.Unset),
		AgeGroup:     orDefault(info.AgeGroup, models.Unset),
		SerialNumber: l.ids.SerialNumber(),
		RegisteredAt: l.now(),
	}

	if l.online() {
		rctx, cancel := l.remote(ctx)
		_, err := l.dir.Insert(rctx, models.CollMembers, member)
		cancel()
		if err != nil {
			l.fallback("Register", err)
		}
	}

	if err := l.cache.SaveMember(ctx, member); err != nil {
		return models.Member{}, err
	}
	l.session.Set(member)
	if err := l.cache.SetSessionEmail(ctx, email); err != nil {
		l.logger.Warn("Save session email", zap.Error(err))
	}
	return member, nil
}

// Сначала локальный кэш и сессия, затем (если получится) Directory
func (l *Ledger) UpdateMember(ctx context.Context, updated models.Member) error {
	ctx, span := tracer.Start(ctx, "Ledger.UpdateMember")
	defer span.End()

	done := l.session.beginWrite()
	defer done()

	if err := l.cache.SaveMember(ctx, updated); err != nil {
		return err
	}
	version, current := l.session.Replace(updated)

	if !l.online() {
		return nil
	}

	rctx, cancel := l.remote(ctx)
	defer cancel()
	doc, err := l.dir.FindOne(rctx, models.CollMembers, models.Filter{"email": updated.Email})
	if err != nil {
		if !errors.Is(err, models.ErrDocumentNotFound) {
			l.fallback("UpdateMember", err)
		}
		return nil
	}
	fields, err := toFields(updated)
	if err != nil {
		return err
	}
	if err := l.dir.UpdateFields(rctx, doc.Ref, fields); err != nil {
		l.fallback("UpdateMember", err)
		return nil
	}
	if current {
		l.session.markSynced(version)
	}
	return nil
}

// Текущее состояние участника: из сессии, если это он, иначе поиск
func (l *Ledger) member(ctx context.Context, email string) (models.Member, error) {
	email = models.NormalizeEmail(email)
	if m, ok := l.session.Current(); ok && m.Email == email {
		return m, nil
	}
	return l.FindMember(ctx, email)
}

// Начисление баллов персоналом
func (l *Ledger) GrantPoints(ctx context.Context, email string, amount int) (models.Member, error) {
	if amount <= 0 {
		return models.Member{}, models.ErrInvalidAmount
	}
	m, err := l.member(ctx, email)
	if err != nil {
		return models.Member{}, err
	}
	m.Points += amount
	if err := l.UpdateMember(ctx, m); err != nil {
		return models.Member{}, err
	}
	l.record(ctx, m.Email, "GrantPoints", "points", amount)
	return m, nil
}

// Сеанс таро: сначала платные кредиты, потом бесплатный лимит
func (l *Ledger) UseTarot(ctx context.Context, email string) (models.Member, error) {
	m, err := l.member(ctx, email)
	if err != nil {
		return models.Member{}, err
	}
	next, field, err := nextTarotUse(m)
	if err != nil {
		return m, err
	}
	if err := l.UpdateMember(ctx, next); err != nil {
		return models.Member{}, err
	}
	delta := 1
	if field == "tarotCredits" {
		delta = -1
	}
	l.record(ctx, next.Email, "UseTarot", field, delta)
	return next, nil
}

func nextTarotUse(m models.Member) (models.Member, string, error) {
	switch {
	case m.TarotCredits > 0:
		m.TarotCredits--
		return m, "tarotCredits", nil
	case m.TarotUsesCount < models.FreeTarotUses:
		m.TarotUsesCount++
		return m, "tarotUsesCount", nil
	default:
		return m, "", models.ErrTarotExhausted
	}
}

// Выпуск ключа оплаты до подтверждения платежа
func (l *Ledger) IssueKey(ctx context.Context, email string) (models.TarotKey, error) {
	if !l.online() {
		return models.TarotKey{}, models.ErrOffline
	}
	m, err := l.member(ctx, email)
	if err != nil {
		return models.TarotKey{}, err
	}
	key := models.TarotKey{
		Key:      l.ids.Key(),
		Email:    m.Email,
		Credits:  models.KeyCredits,
		IssuedAt: l.now(),
	}
	rctx, cancel := l.remote(ctx)
	defer cancel()
	ref, err := l.dir.Insert(rctx, models.CollTarotKeys, key)
	if err != nil {
		l.fallback("IssueKey", err)
		return models.TarotKey{}, fmt.Errorf("issue key: %w", err)
	}
	l.notify(ctx, models.EventKeyIssued, m.Email, ref.ID)
	return key, nil
}

// Активация ключа. Две независимые записи: кредиты участнику, затем ключ использован.
// Одновременная активация одного ключа - известная гонка.
func (l *Ledger) RedeemKey(ctx context.Context, email string, key string) (models.Member, error) {
	ctx, span := tracer.Start(ctx, "Ledger.RedeemKey")
	defer span.End()

	if !l.online() {
		return models.Member{}, models.ErrOffline
	}
	key = models.NormalizeKey(key)
	if key == "" {
		return models.Member{}, models.ErrInvalidKey
	}
	m, err := l.member(ctx, email)
	if err != nil {
		return models.Member{}, err
	}

	rctx, cancel := l.remote(ctx)
	defer cancel()
	doc, err := l.dir.FindOne(rctx, models.CollTarotKeys, models.Filter{"key": key, "email": m.Email, "isUsed": false})
	if errors.Is(err, models.ErrDocumentNotFound) {
		return models.Member{}, models.ErrInvalidKey
	}
	if err != nil {
		l.fallback("RedeemKey", err)
		return models.Member{}, fmt.Errorf("redeem key: %w", err)
	}
	tk, err := models.DecodeTarotKey(doc)
	if err != nil {
		return models.Member{}, fmt.Errorf("%w: %v", models.ErrInvalidKey, err)
	}

	next := m
	next.TarotCredits += tk.Credits
	next.IsSubscribed = true
	if next.TarotMemberSince == nil {
		since := l.now()
		next.TarotMemberSince = &since
	}
	if err := l.UpdateMember(ctx, next); err != nil {
		return models.Member{}, err
	}
	l.record(ctx, next.Email, "RedeemKey", "tarotCredits", tk.Credits)

	if err := l.dir.UpdateFields(rctx, doc.Ref, models.Fields{"isUsed": true}); err != nil {
		l.fallback("RedeemKey", err)
		return next, fmt.Errorf("mark key used: %w", err)
	}
	return next, nil
}

// Заявка на балл за пост в соцсети
func (l *Ledger) RequestPoints(ctx context.Context, email string) (models.PointRequest, error) {
	if !l.online() {
		return models.PointRequest{}, models.ErrOffline
	}
	m, err := l.member(ctx, email)
	if err != nil {
		return models.PointRequest{}, err
	}
	req := models.PointRequest{
		ID:          l.ids.RequestID(),
		MemberEmail: m.Email,
		Nickname:    m.Nickname,
		Type:        models.RequestInstagram,
		Status:      models.StatusPending,
		RequestedAt: l.now(),
	}
	rctx, cancel := l.remote(ctx)
	defer cancel()
	if _, err := l.dir.Insert(rctx, models.CollPointRequests, req); err != nil {
		l.fallback("RequestPoints", err)
		return models.PointRequest{}, fmt.Errorf("request points: %w", err)
	}
	l.notify(ctx, models.EventPointRequested, m.Email, req.ID)
	return req, nil
}

func (l *Ledger) findRequest(ctx context.Context, id string) (models.Document, models.PointRequest, error) {
	doc, err := l.dir.FindOne(ctx, models.CollPointRequests, models.Filter{"id": id})
	if errors.Is(err, models.ErrDocumentNotFound) {
		return models.Document{}, models.PointRequest{}, models.ErrRequestNotFound
	}
	if err != nil {
		return models.Document{}, models.PointRequest{}, err
	}
	req, err := models.DecodePointRequest(doc)
	if err != nil {
		return models.Document{}, models.PointRequest{}, err
	}
	return doc, req, nil
}

// Одобрение заявки: +1 балл участнику, затем статус approved.
// Если вторая запись не прошла, заявка остается pending, а балл уже начислен.
func (l *Ledger) ApprovePointRequest(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Ledger.ApprovePointRequest")
	defer span.End()

	if !l.online() {
		return models.ErrOffline
	}
	rctx, cancel := l.remote(ctx)
	defer cancel()

	reqDoc, req, err := l.findRequest(rctx, id)
	if err != nil {
		return err
	}
	if req.Status != models.StatusPending {
		return models.ErrNotPending
	}
	memberDoc, err := l.dir.FindOne(rctx, models.CollMembers, models.Filter{"email": req.MemberEmail})
	if errors.Is(err, models.ErrDocumentNotFound) {
		return models.ErrMemberNotFound
	}
	if err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	m, err := models.DecodeMember(memberDoc)
	if err != nil {
		return err
	}

	if err := l.dir.UpdateFields(rctx, memberDoc.Ref, models.Fields{"points": m.Points + 1}); err != nil {
		return fmt.Errorf("approve: grant point: %w", err)
	}
	l.record(ctx, m.Email, "ApprovePointRequest", "points", 1)

	if err := l.dir.UpdateFields(rctx, reqDoc.Ref, models.Fields{"status": string(models.StatusApproved)}); err != nil {
		return fmt.Errorf("approve: set status: %w", err)
	}
	return nil
}

func (l *Ledger) RejectPointRequest(ctx context.Context, id string) error {
	if !l.online() {
		return models.ErrOffline
	}
	rctx, cancel := l.remote(ctx)
	defer cancel()

	reqDoc, req, err := l.findRequest(rctx, id)
	if err != nil {
		return err
	}
	if req.Status != models.StatusPending {
		return models.ErrNotPending
	}
	return l.dir.UpdateFields(rctx, reqDoc.Ref, models.Fields{"status": string(models.StatusRejected)})
}

// Начисление кредитов оператором (чтение-изменение-запись в Directory)
func (l *Ledger) GrantCredits(ctx context.Context, email string, credits int) (models.Member, error) {
	if credits == 0 {
		return models.Member{}, models.ErrInvalidAmount
	}
	if !l.online() {
		return models.Member{}, models.ErrOffline
	}
	email = models.NormalizeEmail(email)
	rctx, cancel := l.remote(ctx)
	defer cancel()

	doc, err := l.dir.FindOne(rctx, models.CollMembers, models.Filter{"email": email})
	if errors.Is(err, models.ErrDocumentNotFound) {
		return models.Member{}, models.ErrMemberNotFound
	}
	if err != nil {
		return models.Member{}, fmt.Errorf("grant credits: %w", err)
	}
	m, err := models.DecodeMember(doc)
	if err != nil {
		return models.Member{}, err
	}
	if m.TarotCredits+credits < 0 {
		return models.Member{}, models.ErrInvalidAmount
	}
	m.TarotCredits += credits
	if err := l.dir.UpdateFields(rctx, doc.Ref, models.Fields{"tarotCredits": m.TarotCredits}); err != nil {
		return models.Member{}, fmt.Errorf("grant credits: %w", err)
	}
	l.record(ctx, m.Email, "GrantCredits", "tarotCredits", credits)
	return m, nil
}

func (l *Ledger) record(ctx context.Context, email string, operation string, field string, delta int) {
	ledgerMutations.WithLabelValues(operation).Inc()
	if l.audit == nil {
		return
	}
	entry := models.AuditEntry{Email: email, Operation: operation, Field: field, Delta: delta, At: l.now()}
	if err := l.audit.Record(ctx, entry); err != nil {
		l.logger.Warn("Audit record", zap.String("operation", operation), zap.Error(err))
	}
}

func (l *Ledger) notify(ctx context.Context, eventType string, email string, ref string) {
	if l.notifier == nil {
		return
	}
	event := models.Event{Type: eventType, Email: email, Ref: ref, At: l.now()}
	if err := l.notifier.Notify(ctx, event); err != nil {
		l.logger.Warn("Operator notification", zap.String("event", eventType), zap.Error(err))
	}
}

// запись целиком как набор полей для $set
func toFields(v any) (models.Fields, error) {
	data, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	fields := models.Fields{}
	if err := bson.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func orDefault(v string, def string) string {
	if v == "" {
		return def
	}
	return v
}
