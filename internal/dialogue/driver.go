// Package dialogue runs one conversation turn: it reads the customer's text
// against the current conversation state, extracts and validates what the
// phase expects and produces the next state with the reply to show.
package dialogue

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/sazon-bot/internal/confirm"
	"github.com/xenking/sazon-bot/internal/domain/catalog"
	"github.com/xenking/sazon-bot/internal/domain/conversation"
	"github.com/xenking/sazon-bot/internal/domain/order"
	"github.com/xenking/sazon-bot/internal/extract"
)

// ItemExtractor reads (dish, quantity) pairs from an utterance.
type ItemExtractor interface {
	Extract(text string) ([]order.Candidate, error)
}

// Replier generates a free-form assistant message for a history.
type Replier interface {
	Reply(ctx context.Context, history []conversation.Message) (string, error)
}

// Normalizer rewrites an utterance as "<qty> <dish>" lines.
type Normalizer interface {
	Normalize(ctx context.Context, utterance string) (string, error)
}

// ConfirmationExtractor lifts a confirmed order out of a reply.
type ConfirmationExtractor interface {
	ExtractConfirmed(ctx context.Context, reply string) (*order.ConfirmedOrder, error)
}

// Config wires a Driver. Catalog and Ledger are required.
type Config struct {
	Catalog *catalog.Catalog
	Ledger  order.Ledger

	// Extractor defaults to extract.New(Catalog).
	Extractor ItemExtractor
	// Confirmer defaults to a confirm.TextExtractor over Catalog.
	Confirmer ConfirmationExtractor
	// Replier and Normalizer are optional. Without them the driver answers
	// with fixed messages only.
	Replier    Replier
	Normalizer Normalizer

	// SystemPrompt, when set, opens the history of new conversations.
	SystemPrompt   string
	PickupLocation string
	Location       *time.Location

	Now   func() time.Time
	NewID func() string
}

// Driver implements the ordering flow. It holds no per-conversation state
// and is safe for concurrent use.
type Driver struct {
	catalog   *catalog.Catalog
	validator *order.Validator
	extractor ItemExtractor
	confirmer ConfirmationExtractor
	ledger    order.Ledger
	replier   Replier
	normalize Normalizer

	systemPrompt string
	pickup       string
	loc          *time.Location
	now          func() time.Time
	newID        func() string
}

// New creates a Driver.
func New(cfg Config) *Driver {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Extractor == nil {
		cfg.Extractor = extract.New(cfg.Catalog)
	}
	if cfg.Confirmer == nil {
		cfg.Confirmer = confirm.NewTextExtractor(cfg.Catalog, cfg.Location)
	}
	if cfg.PickupLocation == "" {
		cfg.PickupLocation = "UPCH123"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return uuid.NewString() }
	}
	return &Driver{
		catalog:      cfg.Catalog,
		validator:    order.NewValidator(cfg.Catalog),
		extractor:    cfg.Extractor,
		confirmer:    cfg.Confirmer,
		ledger:       cfg.Ledger,
		replier:      cfg.Replier,
		normalize:    cfg.Normalizer,
		systemPrompt: cfg.SystemPrompt,
		pickup:       cfg.PickupLocation,
		loc:          cfg.Location,
		now:          cfg.Now,
		newID:        cfg.NewID,
	}
}

// NewConversation returns a conversation in PhaseStart whose history holds
// the system prompt (if any) and the welcome message.
func (d *Driver) NewConversation() conversation.State {
	var seed []conversation.Message
	if d.systemPrompt != "" {
		seed = append(seed, conversation.Message{Role: conversation.RoleSystem, Content: d.systemPrompt})
	}
	seed = append(seed, conversation.Message{Role: conversation.RoleAssistant, Content: Welcome(d.catalog)})
	return conversation.New(seed...)
}

// Clear discards the conversation and starts over, from any phase.
func (d *Driver) Clear(conversation.State) conversation.State {
	return d.NewConversation()
}

// turn is a single HandleTurn invocation.
type turn struct {
	st   conversation.State
	text string
}

// HandleTurn processes one customer utterance.
//
// The returned state is a new value; st is never modified. Recoverable
// problems (unknown dish, bad quantity, unknown district and the like) are
// answered with a corrective reply and a nil error. A failure of the
// generation service or of the ledger is returned as an error together with
// the unchanged state and the reply to show: nothing advances on such turns.
func (d *Driver) HandleTurn(ctx context.Context, st conversation.State, text string) (conversation.State, string, error) {
	t := turn{st: st.Clone(), text: strings.TrimSpace(text)}
	if t.st.Phase == conversation.PhaseStart || t.st.Phase == conversation.PhaseDone {
		t.st = t.st.Begin()
	}

	var (
		next  conversation.State
		reply string
		err   error
	)
	switch t.st.Phase {
	case conversation.PhaseCollectingItems:
		next, reply, err = d.collectItems(ctx, t)
	case conversation.PhaseConfirmingItems:
		next, reply, err = d.confirmItems(ctx, t)
	case conversation.PhaseCollectingDelivery:
		next, reply = d.collectDelivery(t)
	case conversation.PhaseCollectingPayment:
		next, reply, err = d.collectPayment(ctx, t)
	default:
		return st, "", errors.Errorf("unknown phase %q", t.st.Phase)
	}
	if err != nil {
		return st.Clone(), reply, err
	}

	next = next.Append(
		conversation.Message{Role: conversation.RoleUser, Content: t.text},
		conversation.Message{Role: conversation.RoleAssistant, Content: reply},
	)
	return next, reply, nil
}

func (d *Driver) collectItems(ctx context.Context, t turn) (conversation.State, string, error) {
	items, err := d.parseItems(ctx, t.text, true)
	if err == nil {
		t.st.Draft.Add(items...)
		t.st.Phase = conversation.PhaseConfirmingItems
		return t.st, summary(t.st.Draft), nil
	}
	if isFatal(err) {
		return t.st, failureReply(ctx, err), err
	}

	if errors.Is(err, extract.ErrNoItems) && d.replier != nil {
		generated, rerr := d.generate(ctx, t)
		if rerr != nil {
			return t.st, failureReply(ctx, rerr), rerr
		}
		return t.st, join(generated, menuReminder(d.catalog)), nil
	}
	return t.st, join(correction(err), menuReminder(d.catalog)), nil
}

func (d *Driver) confirmItems(ctx context.Context, t turn) (conversation.State, string, error) {
	switch classify(t.text) {
	case intentAffirm:
		t.st.Phase = conversation.PhaseCollectingDelivery
		return t.st, msgAskDelivery(d.pickup), nil
	case intentDecline:
		return t.st.Decline(), join(msgDeclined, menuReminder(d.catalog)), nil
	}

	// Anything else may be extra lines, typically a drink or a dessert.
	items, err := d.parseItems(ctx, t.text, false)
	switch {
	case err == nil:
		t.st.Draft.Add(items...)
		return t.st, summary(t.st.Draft), nil
	case isFatal(err):
		return t.st, failureReply(ctx, err), err
	case !errors.Is(err, extract.ErrNoItems):
		return t.st, join(correction(err), msgConfirmHint), nil
	}

	if d.replier != nil {
		generated, rerr := d.generate(ctx, t)
		if rerr != nil {
			return t.st, failureReply(ctx, rerr), rerr
		}
		return t.st, join(generated, msgConfirmHint), nil
	}
	return t.st, msgConfirmHint, nil
}

func (d *Driver) collectDelivery(t turn) (conversation.State, string) {
	w := words(t.text)

	if district, ok := findDistrict(d.catalog, t.text); ok {
		t.st.Draft.Delivery = order.DeliveryHome
		t.st.Draft.District = district.Name
		t.st.Phase = conversation.PhaseCollectingPayment
		return t.st, join(msgDelivery(district.Name), msgAskPayment)
	}

	switch {
	case containsAny(w, pickupWords):
		t.st.Draft.Delivery = order.DeliveryPickup
		t.st.Draft.District = ""
		t.st.Phase = conversation.PhaseCollectingPayment
		return t.st, join(msgPickup(d.pickup), msgAskPayment)
	case containsAny(w, deliveryWords) && onlyDeliveryTalk(w):
		t.st.Draft.Delivery = order.DeliveryHome
		return t.st, join(msgAskDistrict, DistrictList(d.catalog))
	case t.st.Draft.Delivery == order.DeliveryHome || containsAny(w, deliveryWords):
		t.st.Draft.Delivery = order.DeliveryHome
		return t.st, join(correction(&order.DistrictNotFoundError{Name: t.text}), DistrictList(d.catalog))
	}
	return t.st, msgAskDelivery(d.pickup)
}

func (d *Driver) collectPayment(ctx context.Context, t turn) (conversation.State, string, error) {
	lg := zctx.From(ctx)

	payment := strings.Join(strings.Fields(t.text), " ")
	if payment == "" {
		return t.st, msgAskPayment, nil
	}

	draft := t.st.Draft.Clone()
	draft.PaymentMethod = payment
	at := d.now().In(d.loc).Truncate(time.Second)

	built, err := order.Confirm(draft, d.newID(), d.pickup, at)
	if err != nil {
		var incomplete *order.IncompleteError
		if errors.As(err, &incomplete) && incomplete.Field != "payment method" {
			t.st.Phase = conversation.PhaseCollectingDelivery
			return t.st, msgAskDelivery(d.pickup), nil
		}
		if errors.Is(err, order.ErrEmptyItems) {
			return t.st.Decline(), join(msgNoItems, menuReminder(d.catalog)), nil
		}
		return t.st, msgAskPayment, nil
	}

	receipt := confirm.RenderReceipt(built)
	confirmed, err := d.confirmer.ExtractConfirmed(ctx, receipt)
	switch {
	case errors.Is(err, confirm.ErrNotConfirmed):
		lg.Warn("Confirmation not recognized", zap.String("order_id", built.ID), zap.Error(err))
		return t.st, msgNotConfirmed, nil
	case err != nil:
		return t.st, failureReply(ctx, err), err
	case !order.SameContent(built, confirmed):
		lg.Warn("Confirmation does not match draft", zap.String("order_id", built.ID))
		return t.st, msgNotConfirmed, nil
	}
	// The lifted order only gates the write; the validated one is stored.
	if err := d.ledger.Append(ctx, built); err != nil {
		var perr *order.PersistenceError
		if !errors.As(err, &perr) {
			err = &order.PersistenceError{Err: err}
		}
		return t.st, failureReply(ctx, err), err
	}

	lg.Info("Order confirmed",
		zap.String("order_id", built.ID),
		zap.String("total", built.Total.StringFixed(2)),
		zap.String("delivery", string(built.Delivery)),
		zap.Int("items", len(built.Items)),
	)

	t.st.Draft = draft
	t.st.Confirmed = built
	t.st.Phase = conversation.PhaseDone
	return t.st, join(receipt, msgThanks), nil
}

// parseItems extracts and validates items. When nothing is found and
// normalize is set, the generation service gets one chance to rewrite the
// utterance.
func (d *Driver) parseItems(ctx context.Context, text string, normalize bool) ([]order.LineItem, error) {
	candidates, err := d.extractor.Extract(text)
	if errors.Is(err, extract.ErrNoItems) && normalize && d.normalize != nil && text != "" {
		rewritten, nerr := d.normalize.Normalize(ctx, text)
		if nerr != nil {
			return nil, nerr
		}
		if rewritten != "" {
			candidates, err = d.extractor.Extract(rewritten)
		}
	}
	if err != nil {
		return nil, err
	}
	return d.validator.Validate(candidates)
}

func (d *Driver) generate(ctx context.Context, t turn) (string, error) {
	history := t.st.Append(conversation.Message{Role: conversation.RoleUser, Content: t.text}).History
	return d.replier.Reply(ctx, history)
}

// isFatal reports errors that end the turn without a transition: anything
// that is not a recoverable extraction or validation problem.
func isFatal(err error) bool {
	var (
		malformed  *extract.MalformedQuantityError
		outOfRange *order.QuantityOutOfRangeError
		notFound   *order.DishNotFoundError
	)
	switch {
	case errors.Is(err, extract.ErrNoItems),
		errors.Is(err, order.ErrEmptyItems),
		errors.As(err, &malformed),
		errors.As(err, &outOfRange),
		errors.As(err, &notFound):
		return false
	}
	return true
}

// correction turns a recoverable error into the message that names it.
func correction(err error) string {
	var (
		malformed  *extract.MalformedQuantityError
		outOfRange *order.QuantityOutOfRangeError
		dish       *order.DishNotFoundError
		district   *order.DistrictNotFoundError
	)
	switch {
	case errors.As(err, &outOfRange):
		if outOfRange.Quantity > outOfRange.Max {
			return msgLimit
		}
		return msgBadQuantity(strconv.Itoa(outOfRange.Quantity))
	case errors.As(err, &malformed):
		return msgBadQuantity(malformed.Token)
	case errors.As(err, &dish):
		return msgDishNotFound(dish.Name)
	case errors.As(err, &district):
		return msgDistrictNotFound(district.Name)
	}
	return msgNoItems
}

func failureReply(ctx context.Context, err error) string {
	lg := zctx.From(ctx)
	var perr *order.PersistenceError
	if errors.As(err, &perr) {
		lg.Error("Ledger append failed", zap.Error(err))
		return msgNotSaved
	}
	lg.Error("Turn failed", zap.Error(err))
	return msgServiceFailure
}
