package telegram

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	logx "chirpbot/pkg/logx"
)

// Request is one parsed command message.
type Request struct {
	FromID  int64
	ChatID  int64
	Command string
	Args    []string
}

// HandlerFunc returns the reply text.
type HandlerFunc func(ctx context.Context, req *Request) (string, error)

type Middleware func(next HandlerFunc) HandlerFunc

func Chain(h HandlerFunc, m ...Middleware) HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

func mwTimeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (string, error) {
			if d <= 0 {
				return next(ctx, req)
			}
			cctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(cctx, req)
		}
	}
}

func mwRecover(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (reply string, err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered", logx.Any("panic", r), logx.String("cmd", req.Command), logx.Stack(string(debug.Stack())))
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			return next(ctx, req)
		}
	}
}

func mwLog(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (string, error) {
			start := time.Now()
			reply, err := next(ctx, req)
			fields := []logx.Field{
				logx.Int64("chat_id", req.ChatID),
				logx.Int64("from_id", req.FromID),
				logx.String("cmd", req.Command),
				logx.Duration("dur", time.Since(start)),
			}
			if err != nil {
				log.Warn("command failed", append(fields, logx.Err(err))...)
			} else {
				log.Debug("command ok", fields...)
			}
			return reply, err
		}
	}
}

// Command is one slash command.
type Command struct {
	Name        string
	Usage       string
	Description string
	Timeout     time.Duration
	Handle      HandlerFunc
}

// Router dispatches owner messages to commands. Messages from anyone else
// are ignored without a reply.
type Router struct {
	log      logx.Logger
	owners   map[int64]bool
	commands map[string]Command
}

func NewRouter(owners []int64, log logx.Logger) *Router {
	r := &Router{log: log, owners: map[int64]bool{}, commands: map[string]Command{}}
	for _, id := range owners {
		r.owners[id] = true
	}
	return r
}

func (r *Router) Handle(c Command) {
	c.Handle = Chain(c.Handle, mwRecover(r.log), mwLog(r.log), mwTimeout(c.Timeout))
	r.commands[c.Name] = c
}

func (r *Router) IsOwner(id int64) bool { return r.owners[id] }

// Commands lists registered commands by name.
func (r *Router) Commands() []Command {
	out := make([]Command, 0, len(r.commands))
	for _, c := range r.commands {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ParseCommand splits "/mode@chirpbot on" into "mode" and ["on"].
func ParseCommand(text string) (string, []string, bool) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}
	name := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name), fields[1:], name != ""
}

// Dispatch returns the reply for text, and false when nothing should be
// sent back.
func (r *Router) Dispatch(ctx context.Context, fromID, chatID int64, text string) (string, bool) {
	name, args, ok := ParseCommand(text)
	if !ok {
		return "", false
	}
	if !r.IsOwner(fromID) {
		r.log.Debug("ignoring non-owner", logx.Int64("from_id", fromID), logx.String("cmd", name))
		return "", false
	}
	c, ok := r.commands[name]
	if !ok {
		return fmt.Sprintf("Unknown command /%s. Try /help.", name), true
	}
	reply, err := c.Handle(ctx, &Request{FromID: fromID, ChatID: chatID, Command: name, Args: args})
	if err != nil {
		return "Error: " + err.Error(), true
	}
	return reply, reply != ""
}
