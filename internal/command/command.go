// Package command implements the bot's command surface: a static registry of
// named handlers dispatched with privilege and rate-limit gating. Hidden owner
// maintenance commands live in the same registry, in an unlisted privileged
// namespace, so they share the dispatch and error-handling guarantees.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zapbot-im/zapbot/internal/biz/domain"
	"github.com/zapbot-im/zapbot/internal/biz/repo"
	"github.com/zapbot-im/zapbot/internal/biz/usecase"
	"github.com/zapbot-im/zapbot/internal/conf"
	"github.com/zapbot-im/zapbot/internal/state"
)

// Env is the service bundle handed to every handler. Handlers never reach for
// ambient globals.
type Env struct {
	Transport   repo.Transport
	Progression *usecase.ProgressionUsecase
	Trigger     *usecase.TriggerUsecase
	Settings    *state.Settings
	Warnings    *state.Warnings
	Punishments *state.Punishments
	Ephemeral   *state.EphemeralStore
	Messages    *conf.Messages
	OwnerJID    string
	Prefix      string
	Logger      *slog.Logger
}

// Request carries the triggering message and the parsed argument list.
type Request struct {
	Msg  *domain.Message
	Args []string
}

// HandlerFunc executes one command.
type HandlerFunc func(ctx context.Context, env *Env, req *Request) error

// Descriptor describes one registered command.
type Descriptor struct {
	Name              string
	Description       string
	RequiresPrivilege bool
	Hidden            bool
	Handler           HandlerFunc
}

// Registry is the name-to-handler table. It is immutable after Freeze.
type Registry struct {
	env      *Env
	limiter  *state.RateLimiter
	commands map[string]Descriptor
	frozen   bool
}

// NewRegistry creates an empty registry.
func NewRegistry(env *Env, limiter *state.RateLimiter) *Registry {
	return &Registry{
		env:      env,
		limiter:  limiter,
		commands: make(map[string]Descriptor),
	}
}

// Register adds a command. Registration after Freeze is a programming error.
func (r *Registry) Register(d Descriptor) {
	if r.frozen {
		panic("command: Register after Freeze")
	}
	r.commands[strings.ToLower(d.Name)] = d
}

// Freeze locks the registry against further registration.
func (r *Registry) Freeze() {
	r.frozen = true
}

// List returns the visible (non-hidden) descriptors, sorted by name.
func (r *Registry) List() []Descriptor {
	var out []Descriptor
	for _, d := range r.commands {
		if !d.Hidden {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.commands[strings.ToLower(name)]
	return ok
}

// Dispatch resolves and runs a command. It reports whether the message was
// handled: any matched name is handled, whether the handler succeeded, was
// denied, or failed, so the pipeline stops trying other response strategies.
// An unknown name is not handled; the caller decides whether to fall through.
func (r *Registry) Dispatch(ctx context.Context, name string, req *Request) bool {
	d, ok := r.commands[strings.ToLower(name)]
	if !ok {
		return false
	}

	sender := req.Msg.SenderJID

	if d.RequiresPrivilege && sender != r.env.OwnerJID {
		r.reply(ctx, req, r.env.Messages.AccessDenied)
		return true
	}

	if sender != r.env.OwnerJID {
		if allowed, remaining := r.limiter.Allow(sender, time.Now()); !allowed {
			r.reply(ctx, req, fmt.Sprintf(r.env.Messages.RateLimited, state.WaitSeconds(remaining)))
			return true
		}
	}

	if err := d.Handler(ctx, r.env, req); err != nil {
		r.reportFailure(ctx, d.Name, req, err)
	}
	return true
}

// reportFailure logs a handler error, sends the generic user-facing notice
// and forwards a detailed report to the owner.
func (r *Registry) reportFailure(ctx context.Context, name string, req *Request, err error) {
	ref := uuid.NewString()
	r.env.Logger.Error("command failed",
		"command", name, "chat", req.Msg.ChatJID, "sender", req.Msg.SenderJID, "ref", ref, "error", err)

	r.reply(ctx, req, r.env.Messages.CommandFailure)

	report := fmt.Sprintf("Command %s%s failed in %s (ref %s):\n%v", r.env.Prefix, name, req.Msg.ChatJID, ref, err)
	if sendErr := r.env.Transport.SendText(ctx, r.env.OwnerJID, report, nil); sendErr != nil {
		r.env.Logger.Warn("owner report failed", "ref", ref, "error", sendErr)
	}
}

func (r *Registry) reply(ctx context.Context, req *Request, text string) {
	if err := r.env.Transport.SendText(ctx, req.Msg.ChatJID, text, nil); err != nil {
		r.env.Logger.Warn("command reply failed", "chat", req.Msg.ChatJID, "error", err)
	}
}

// targetJID resolves a command's subject: the first explicit mention wins,
// then the first argument interpreted as a number.
func targetJID(req *Request) string {
	if len(req.Msg.Mentions) > 0 {
		return domain.NormalizeJID(req.Msg.Mentions[0])
	}
	if len(req.Args) > 0 {
		return domain.NormalizeJID(req.Args[0])
	}
	return ""
}

// isGroupAdmin reports whether jid moderates the request's group. The owner
// is treated as an admin everywhere.
func isGroupAdmin(ctx context.Context, env *Env, groupJID, jid string) bool {
	if jid == env.OwnerJID {
		return true
	}
	members, err := env.Transport.GroupMembers(ctx, groupJID)
	if err != nil {
		return false
	}
	want := domain.NormalizeJID(jid)
	for _, m := range members {
		if domain.NormalizeJID(m.JID) == want {
			return m.IsAdmin()
		}
	}
	return false
}
