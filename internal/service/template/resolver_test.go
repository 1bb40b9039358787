package template

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/collections-notifier/internal/model"
)

type stubTemplateRepo struct {
	exact     *model.MessageTemplate
	generic   *model.MessageTemplate
	findErr   error
	findCalls int
	genCalls  int
}

func (s *stubTemplateRepo) Find(ctx context.Context, ch model.Channel, milestone int, pt model.PartyType) (*model.MessageTemplate, error) {
	s.findCalls++
	return s.exact, s.findErr
}

func (s *stubTemplateRepo) FindGeneric(ctx context.Context, ch model.Channel, milestone int) (*model.MessageTemplate, error) {
	s.genCalls++
	return s.generic, s.findErr
}

func TestResolvePrefersPartySpecificTemplate(t *testing.T) {
	exact := &model.MessageTemplate{Channel: model.ChannelWhatsApp, Milestone: 7, Body: "party specific"}
	repo := &stubTemplateRepo{exact: exact, generic: &model.MessageTemplate{Body: "generic"}}
	r := NewResolver(repo, time.Minute)

	tpl, err := r.Resolve(context.Background(), model.ChannelWhatsApp, 7, model.PartyTypeIndividual)
	require.NoError(t, err)
	assert.Equal(t, "party specific", tpl.Body)
	assert.Zero(t, repo.genCalls)
}

func TestResolveFallsBackToGenericTemplate(t *testing.T) {
	repo := &stubTemplateRepo{generic: &model.MessageTemplate{Channel: model.ChannelEmail, Milestone: 15, Body: "generic"}}
	r := NewResolver(repo, time.Minute)

	tpl, err := r.Resolve(context.Background(), model.ChannelEmail, 15, model.PartyTypeOrganization)
	require.NoError(t, err)
	assert.Equal(t, "generic", tpl.Body)
	assert.Equal(t, 1, repo.findCalls)
	assert.Equal(t, 1, repo.genCalls)
}

func TestResolveFallsBackToBuiltin(t *testing.T) {
	r := NewResolver(&stubTemplateRepo{}, time.Minute)

	t.Run("email builtin carries a subject", func(t *testing.T) {
		tpl, err := r.Resolve(context.Background(), model.ChannelEmail, 30, model.PartyTypeIndividual)
		require.NoError(t, err)
		require.NotNil(t, tpl.Subject)
		assert.NotEmpty(t, tpl.Body)
	})

	t.Run("whatsapp builtin has no subject", func(t *testing.T) {
		tpl, err := r.Resolve(context.Background(), model.ChannelWhatsApp, 30, model.PartyTypeIndividual)
		require.NoError(t, err)
		assert.Nil(t, tpl.Subject)
		assert.NotEmpty(t, tpl.Body)
	})
}

func TestResolvePropagatesRepositoryError(t *testing.T) {
	repo := &stubTemplateRepo{findErr: errors.New("connection refused")}
	r := NewResolver(repo, time.Minute)

	_, err := r.Resolve(context.Background(), model.ChannelWhatsApp, 7, model.PartyTypeIndividual)
	assert.Error(t, err)
}

func TestResolveCachesLookups(t *testing.T) {
	repo := &stubTemplateRepo{exact: &model.MessageTemplate{Body: "cached"}}
	r := NewResolver(repo, time.Minute)

	for i := 0; i < 3; i++ {
		_, err := r.Resolve(context.Background(), model.ChannelWhatsApp, 7, model.PartyTypeIndividual)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, repo.findCalls)
}

func TestRenderSubstitutesKnownVariables(t *testing.T) {
	subject := "Reminder for {{recipient_name}}"
	tpl := &model.MessageTemplate{
		Subject: &subject,
		Body:    "Hello {{recipient_name}}, {{ amount }} is due for {{elapsed_days}} days.",
	}
	r := NewResolver(&stubTemplateRepo{}, time.Minute)

	gotSubject, gotBody := r.Render(tpl, map[string]string{
		VarRecipientName: "Carla Dias",
		VarAmount:        "250.00 BRL",
		VarElapsedDays:   "15",
	})

	assert.Equal(t, "Reminder for Carla Dias", gotSubject)
	assert.Equal(t, "Hello Carla Dias, 250.00 BRL is due for 15 days.", gotBody)
}

func TestRenderLeavesUnknownPlaceholdersVerbatim(t *testing.T) {
	tpl := &model.MessageTemplate{Body: "Hi {{recipient_name}}, ref {{contract_number}}."}
	r := NewResolver(&stubTemplateRepo{}, time.Minute)

	_, body := r.Render(tpl, map[string]string{VarRecipientName: "Davi"})
	assert.Equal(t, "Hi Davi, ref {{contract_number}}.", body)
}

func TestRenderWithoutSubject(t *testing.T) {
	tpl := &model.MessageTemplate{Body: "plain"}
	r := NewResolver(&stubTemplateRepo{}, time.Minute)

	subject, body := r.Render(tpl, nil)
	assert.Empty(t, subject)
	assert.Equal(t, "plain", body)
}
