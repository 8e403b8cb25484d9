// Package script embeds a Lua interpreter (gopher-lua) and forwards the
// core's lifecycle events to it, mirroring the project's existing
// lua.go/l_*.go binding family but generalized to this relay's six hooks
// and its broadcast-decision override contract.
package script

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/rigsofrods/relay-sequencer/internal/relay"
)

// Host is the narrow surface the bridge calls back into the sequencer
// through. It is implemented by *sequencer.Sequencer; the bridge never
// imports the sequencer package, to keep the dependency one-directional.
type Host interface {
	PlayerName(uid uint32) (string, bool)
	PlayerCount() int
	ChatSendPlayer(uid uint32, msg string) error
	ChatSendAll(msg string)
	KickPlayer(uid uint32, reason string) error
}

// Bridge owns a single *lua.LState and every registered hook handler.
// gopher-lua's LState is not safe for concurrent use, so every call into
// it (hook dispatch, the http_get callback pump) is serialized by
// luaLock, which each of those paths holds for the duration of the call.
type Bridge struct {
	logger *log.Logger
	host   Host

	luaLock sync.Mutex
	state   *lua.LState

	frameStepHandlers   []*lua.LFunction
	playerAddedHandlers []*lua.LFunction
	playerDeletedHandlers []*lua.LFunction
	streamAddedHandler  *lua.LFunction
	playerChatHandler   *lua.LFunction
	gameCmdHandler      *lua.LFunction

	pumpCh chan func()

	frameStepInterval chan time.Duration
	frameStepStop     chan struct{}
}

// defaultFrameStepInterval matches the spec's Lua-settable default of
// 100ms when a script never calls set_frame_step_interval.
const defaultFrameStepInterval = 100 * time.Millisecond

// Open loads and runs the script at path, registering the host API
// table before execution so top-level script code can call
// register_* immediately.
func Open(path string, host Host, logger *log.Logger) (*Bridge, error) {
	b := &Bridge{
		logger:            logger,
		host:              host,
		state:             lua.NewState(),
		pumpCh:            make(chan func(), 64),
		frameStepInterval: make(chan time.Duration, 1),
		frameStepStop:     make(chan struct{}),
	}

	b.registerAPI()

	if err := b.state.DoFile(path); err != nil {
		b.state.Close()
		return nil, fmt.Errorf("script: loading %s: %w", path, err)
	}

	go b.runPump()
	go b.runFrameStepTimer()

	return b, nil
}

// Close releases the interpreter. Safe to call once.
func (b *Bridge) Close() {
	close(b.frameStepStop)
	close(b.pumpCh)
	b.luaLock.Lock()
	defer b.luaLock.Unlock()
	b.state.Close()
}

// runFrameStepTimer is the bridge's own dedicated timer worker: the
// core never drives frame_step, the bridge schedules it at whatever
// interval the script last configured via set_frame_step_interval.
func (b *Bridge) runFrameStepTimer() {
	interval := defaultFrameStepInterval
	last := time.Now()
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-b.frameStepStop:
			return
		case next := <-b.frameStepInterval:
			interval = next
		case now := <-timer.C:
			dt := now.Sub(last)
			last = now
			b.FrameStep(dt.Milliseconds())
			timer.Reset(interval)
		}
	}
}

func (b *Bridge) runPump() {
	for fn := range b.pumpCh {
		fn()
	}
}

func (b *Bridge) registerAPI() {
	api := b.state.NewTable()
	b.state.SetGlobal("sequencer", api)

	reg := func(name string, f func(*lua.LState) int) {
		api.RawSet(lua.LString(name), b.state.NewFunction(f))
	}

	reg("register_frame_step", b.luaRegisterFrameStep)
	reg("register_player_added", b.luaRegisterPlayerAdded)
	reg("register_player_deleted", b.luaRegisterPlayerDeleted)
	reg("register_stream_added", b.luaRegisterStreamAdded)
	reg("register_player_chat", b.luaRegisterPlayerChat)
	reg("register_game_cmd", b.luaRegisterGameCmd)

	reg("get_player_name", b.luaGetPlayerName)
	reg("get_player_count", b.luaGetPlayerCount)
	reg("chat_send_player", b.luaChatSendPlayer)
	reg("chat_send_all", b.luaChatSendAll)
	reg("kick_player", b.luaKickPlayer)
	reg("http_get", b.luaHTTPGet)
	reg("log", b.luaLog)
	reg("set_frame_step_interval", b.luaSetFrameStepInterval)
}

func (b *Bridge) luaSetFrameStepInterval(L *lua.LState) int {
	ms := L.CheckInt(1)
	select {
	case b.frameStepInterval <- time.Duration(ms) * time.Millisecond:
	default:
	}
	return 0
}

func (b *Bridge) luaRegisterFrameStep(L *lua.LState) int {
	b.frameStepHandlers = append(b.frameStepHandlers, L.CheckFunction(1))
	return 0
}

func (b *Bridge) luaRegisterPlayerAdded(L *lua.LState) int {
	b.playerAddedHandlers = append(b.playerAddedHandlers, L.CheckFunction(1))
	return 0
}

func (b *Bridge) luaRegisterPlayerDeleted(L *lua.LState) int {
	b.playerDeletedHandlers = append(b.playerDeletedHandlers, L.CheckFunction(1))
	return 0
}

func (b *Bridge) luaRegisterStreamAdded(L *lua.LState) int {
	b.streamAddedHandler = L.CheckFunction(1)
	return 0
}

func (b *Bridge) luaRegisterPlayerChat(L *lua.LState) int {
	b.playerChatHandler = L.CheckFunction(1)
	return 0
}

func (b *Bridge) luaRegisterGameCmd(L *lua.LState) int {
	b.gameCmdHandler = L.CheckFunction(1)
	return 0
}

func (b *Bridge) luaGetPlayerName(L *lua.LState) int {
	uid := uint32(L.CheckInt(1))
	name, ok := b.host.PlayerName(uid)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(name))
	return 1
}

func (b *Bridge) luaGetPlayerCount(L *lua.LState) int {
	L.Push(lua.LNumber(b.host.PlayerCount()))
	return 1
}

func (b *Bridge) luaChatSendPlayer(L *lua.LState) int {
	uid := uint32(L.CheckInt(1))
	msg := L.CheckString(2)
	if err := b.host.ChatSendPlayer(uid, msg); err != nil {
		b.logger.Printf("chat_send_player(%d): %v", uid, err)
	}
	return 0
}

func (b *Bridge) luaChatSendAll(L *lua.LState) int {
	b.host.ChatSendAll(L.CheckString(1))
	return 0
}

func (b *Bridge) luaKickPlayer(L *lua.LState) int {
	uid := uint32(L.CheckInt(1))
	reason := L.CheckString(2)
	if err := b.host.KickPlayer(uid, reason); err != nil {
		b.logger.Printf("kick_player(%d): %v", uid, err)
	}
	return 0
}

func (b *Bridge) luaLog(L *lua.LState) int {
	b.logger.Print(L.CheckString(1))
	return 0
}

// luaHTTPGet starts the GET on its own goroutine, outside any sequencer
// lock, and marshals the result back onto the callback pump so the
// callback into the Lua state is always serialized with every other
// call into that state.
func (b *Bridge) luaHTTPGet(L *lua.LState) int {
	url := L.CheckString(1)
	cb := L.CheckFunction(2)

	go func() {
		resp, err := http.Get(url)
		b.pumpCh <- func() {
			b.luaLock.Lock()
			defer b.luaLock.Unlock()

			if err != nil {
				b.call(cb, lua.LBool(false), lua.LString(err.Error()))
				return
			}
			defer resp.Body.Close()
			b.call(cb, lua.LBool(true), lua.LNumber(resp.StatusCode))
		}
	}()

	return 0
}

// call invokes f with args, recovering a Lua-level error into a log
// line rather than letting it propagate out of the caller's goroutine.
// Caller must already hold luaLock.
func (b *Bridge) call(f *lua.LFunction, args ...lua.LValue) []lua.LValue {
	if f == nil {
		return nil
	}
	if err := b.state.CallByParam(lua.P{Fn: f, NRet: 1, Protect: true}, args...); err != nil {
		b.logger.Printf("script error: %v", err)
		return nil
	}
	ret := b.state.Get(-1)
	b.state.Pop(1)
	if ret == lua.LNil {
		return nil
	}
	return []lua.LValue{ret}
}

func decisionFromLua(v lua.LValue) relay.BroadcastDecision {
	s, ok := v.(lua.LString)
	if !ok {
		return relay.BroadcastAuto
	}
	switch string(s) {
	case "ALL":
		return relay.BroadcastAll
	case "NORMAL":
		return relay.BroadcastNormal
	case "AUTHED":
		return relay.BroadcastAuthed
	case "BLOCK":
		return relay.BroadcastBlock
	default:
		return relay.BroadcastAuto
	}
}

// FrameStep dispatches dt (milliseconds) to every registered
// frame_step handler.
func (b *Bridge) FrameStep(dtMillis int64) {
	if b == nil || len(b.frameStepHandlers) == 0 {
		return
	}
	b.luaLock.Lock()
	defer b.luaLock.Unlock()
	for _, f := range b.frameStepHandlers {
		b.call(f, lua.LNumber(dtMillis))
	}
}

// PlayerAdded dispatches player_added to every registered handler.
func (b *Bridge) PlayerAdded(uid uint32) {
	if b == nil || len(b.playerAddedHandlers) == 0 {
		return
	}
	b.luaLock.Lock()
	defer b.luaLock.Unlock()
	for _, f := range b.playerAddedHandlers {
		b.call(f, lua.LNumber(uid))
	}
}

// PlayerDeleted dispatches player_deleted to every registered handler.
func (b *Bridge) PlayerDeleted(uid uint32, crashed bool) {
	if b == nil || len(b.playerDeletedHandlers) == 0 {
		return
	}
	b.luaLock.Lock()
	defer b.luaLock.Unlock()
	for _, f := range b.playerDeletedHandlers {
		b.call(f, lua.LNumber(uid), lua.LBool(crashed))
	}
}

// StreamAdded dispatches stream_added and returns the script's
// broadcast-decision override (relay.BroadcastAuto if no handler is
// registered or it returned nothing).
func (b *Bridge) StreamAdded(uid uint32, streamName string, streamType int) relay.BroadcastDecision {
	if b == nil || b.streamAddedHandler == nil {
		return relay.BroadcastAuto
	}
	b.luaLock.Lock()
	defer b.luaLock.Unlock()
	ret := b.call(b.streamAddedHandler, lua.LNumber(uid), lua.LString(streamName), lua.LNumber(streamType))
	if len(ret) == 0 {
		return relay.BroadcastAuto
	}
	return decisionFromLua(ret[0])
}

// PlayerChat dispatches player_chat and returns the script's
// broadcast-decision override.
func (b *Bridge) PlayerChat(uid uint32, text string) relay.BroadcastDecision {
	if b == nil || b.playerChatHandler == nil {
		return relay.BroadcastAuto
	}
	b.luaLock.Lock()
	defer b.luaLock.Unlock()
	ret := b.call(b.playerChatHandler, lua.LNumber(uid), lua.LString(text))
	if len(ret) == 0 {
		return relay.BroadcastAuto
	}
	return decisionFromLua(ret[0])
}

// GameCmd dispatches game_cmd; there is no default broadcast, so no
// return value is consumed.
func (b *Bridge) GameCmd(uid uint32, text string) {
	if b == nil || b.gameCmdHandler == nil {
		return
	}
	b.luaLock.Lock()
	defer b.luaLock.Unlock()
	b.call(b.gameCmdHandler, lua.LNumber(uid), lua.LString(text))
}
