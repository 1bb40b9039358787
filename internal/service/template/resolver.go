package template

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/collections-notifier/internal/model"
	"github.com/jwalitptl/collections-notifier/internal/repository"
)

// Variable vocabulary accepted in template bodies. Unknown placeholders
// are left verbatim.
const (
	VarRecipientName = "recipient_name"
	VarDestination   = "destination"
	VarKind          = "obligation_kind"
	VarAmount        = "amount"
	VarElapsedDays   = "elapsed_days"
)

var placeholderRegex = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Resolver selects a message template by (channel, milestone, party type)
// through an ordered fallback chain: the party-specific row, then the
// channel-generic row, then a built-in minimal template. The built-in tail
// means resolution can never fail for lack of a template.
type Resolver struct {
	repo  repository.TemplateRepository
	cache *cache.Cache
}

func NewResolver(repo repository.TemplateRepository, cacheTTL time.Duration) *Resolver {
	return &Resolver{
		repo:  repo,
		cache: cache.New(cacheTTL, 2*cacheTTL),
	}
}

func (r *Resolver) Resolve(ctx context.Context, ch model.Channel, milestone int, partyType model.PartyType) (*model.MessageTemplate, error) {
	key := fmt.Sprintf("%s:%d:%s", ch, milestone, partyType)
	if cached, ok := r.cache.Get(key); ok {
		return cached.(*model.MessageTemplate), nil
	}

	strategies := []func() (*model.MessageTemplate, error){
		func() (*model.MessageTemplate, error) { return r.repo.Find(ctx, ch, milestone, partyType) },
		func() (*model.MessageTemplate, error) { return r.repo.FindGeneric(ctx, ch, milestone) },
		func() (*model.MessageTemplate, error) { return builtinTemplate(ch), nil },
	}

	for _, lookup := range strategies {
		tpl, err := lookup()
		if err != nil {
			return nil, err
		}
		if tpl != nil {
			r.cache.Set(key, tpl, cache.DefaultExpiration)
			return tpl, nil
		}
	}

	// Unreachable: the built-in strategy always returns a template.
	return builtinTemplate(ch), nil
}

// Render substitutes {{variable}} placeholders in the subject and body.
// Placeholders outside the supplied map stay verbatim.
func (r *Resolver) Render(tpl *model.MessageTemplate, vars map[string]string) (subject, body string) {
	if tpl.Subject != nil {
		subject = substitute(*tpl.Subject, vars)
	}
	return subject, substitute(tpl.Body, vars)
}

func substitute(content string, vars map[string]string) string {
	if content == "" || len(vars) == 0 {
		return content
	}
	return placeholderRegex.ReplaceAllStringFunc(content, func(match string) string {
		submatch := placeholderRegex.FindStringSubmatch(match)
		if len(submatch) != 2 {
			return match
		}
		if value, ok := vars[submatch[1]]; ok {
			return value
		}
		return match
	})
}

func builtinTemplate(ch model.Channel) *model.MessageTemplate {
	switch ch {
	case model.ChannelEmail:
		subject := "Pending obligation reminder"
		return &model.MessageTemplate{
			Channel: model.ChannelEmail,
			Subject: &subject,
			Body: "Hello {{recipient_name}}, your {{obligation_kind}} of {{amount}} " +
				"has been open for {{elapsed_days}} days. Please contact us to settle it.",
		}
	default:
		return &model.MessageTemplate{
			Channel: model.ChannelWhatsApp,
			Body: "Hello {{recipient_name}}, your {{obligation_kind}} of {{amount}} " +
				"has been open for {{elapsed_days}} days. Please contact us to settle it.",
		}
	}
}
