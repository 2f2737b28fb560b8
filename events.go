package fileactivity

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Kind is the semantic classification the correlation engine assigns to a
// committed edit or family of edits.
type Kind int

const (
	AttributeChange Kind = iota + 1
	SecurityChange
	FolderRemoveKind
	FolderMoveKind
	RenameKind
	CreateKind
	CreateBySaveAs
	CreateByRename
	CreateByDownload
	CreateByWord
	ModifyByWord
	ModifyByRename
	RemoveKind
	ModifyKind
	CopyKind
	MoveKind
)

func (k Kind) String() string {
	switch k {
	case AttributeChange:
		return "attribute_change"
	case SecurityChange:
		return "security_change"
	case FolderRemoveKind:
		return "folder_remove"
	case FolderMoveKind:
		return "folder_move"
	case RenameKind:
		return "rename"
	case CreateKind:
		return "create"
	case CreateBySaveAs:
		return "create_by_save_as"
	case CreateByRename:
		return "create_by_rename"
	case CreateByDownload:
		return "create_by_download"
	case CreateByWord:
		return "create_by_word"
	case ModifyByWord:
		return "modify_by_word"
	case ModifyByRename:
		return "modify_by_rename"
	case RemoveKind:
		return "remove"
	case ModifyKind:
		return "modify"
	case CopyKind:
		return "copy"
	case MoveKind:
		return "move"
	default:
		return "unknown"
	}
}

// Event is one semantic edit the correlation engine has committed. Path is
// always populated; Dest holds the destination half for two-path kinds
// (rename, move, folder move), except for create/modify-by-rename, where
// Path is the new name and Dest the old one; Extra carries companion
// temporary names for multi-file patterns (download auto-save, Word
// save/save-as).
type Event struct {
	ID     uuid.UUID
	Kind   Kind
	Volume string
	Path   string
	Dest   string
	Extra  []string
	At     time.Time
}

func (e Event) String() string {
	if e.Dest != "" {
		return fmt.Sprintf("%s %s -> %s", e.Kind, e.Path, e.Dest)
	}
	return fmt.Sprintf("%s %s", e.Kind, e.Path)
}

func newEventID() uuid.UUID { return uuid.New() }

// Sink receives every semantic event the engine commits. A sink is assumed
// reentrant-safe and cheap; the engine calls it synchronously and never
// retries a failed (panicking) call.
type Sink func(Event)

// LogSink returns a Sink that logs every event at slog.LevelInfo.
func LogSink(logger *slog.Logger) Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return func(e Event) {
		logger.Info("file activity", "kind", e.Kind.String(), "volume", e.Volume, "path", e.Path, "dest", e.Dest)
	}
}

// FanOutSink composes multiple sinks, calling each in turn on the caller's
// goroutine (the engine's, in practice), preserving the "engine serializes
// calls" guarantee for every member sink.
func FanOutSink(sinks ...Sink) Sink {
	live := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	return func(e Event) {
		for _, s := range live {
			s(e)
		}
	}
}
