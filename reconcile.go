package social

import (
	"sort"
	"time"
)

// ClusterWindow is the largest gap between two messages of one sender that
// still renders them as one visual cluster.
const ClusterWindow = 2 * time.Minute

// ThreadState distinguishes a missing conversation from an empty one.
type ThreadState string

const (
	ThreadMissing ThreadState = "missing"
	ThreadEmpty   ThreadState = "empty"
	ThreadReady   ThreadState = "ready"
)

// Cluster is a run of consecutive messages from one sender.
type Cluster struct {
	SenderID string
	Messages []Message
}

// Thread is the render-ready form of a conversation.
type Thread struct {
	State    ThreadState
	Messages []Message
	Clusters []Cluster
	// StatusID is the id of the message carrying the delivery badge; zero
	// when no badge is shown.
	StatusID int64
	Status   MessageStatus
}

// Reconcile turns a conversation's raw message list into a Thread. exists
// is false when the conversation is not cached at all.
func Reconcile(conv Conversation, exists bool, selfID string) Thread {
	if !exists {
		return Thread{State: ThreadMissing}
	}
	msgs := SortChronological(Dedupe(conv.Messages))
	if len(msgs) == 0 {
		return Thread{State: ThreadEmpty}
	}
	t := Thread{
		State:    ThreadReady,
		Messages: msgs,
		Clusters: ClusterMessages(msgs),
	}
	t.StatusID, t.Status = ResolveStatus(msgs, selfID)
	return t
}

// Dedupe keeps the first occurrence of every positive id and every
// non-positive (local) id.
func Dedupe(msgs []Message) []Message {
	seen := make(map[int64]struct{}, len(msgs))
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.ID > 0 {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
		}
		out = append(out, m)
	}
	return out
}

// SortChronological orders messages by CreatedAt. The sort is stable and
// compares the RFC 3339 strings directly.
func SortChronological(msgs []Message) []Message {
	out := append([]Message{}, msgs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out
}

// ClusterMessages groups consecutive messages with the same sender and a
// gap below ClusterWindow. Input must already be sorted.
func ClusterMessages(msgs []Message) []Cluster {
	var out []Cluster
	for i, m := range msgs {
		if i > 0 && sameCluster(msgs[i-1], m) {
			last := &out[len(out)-1]
			last.Messages = append(last.Messages, m)
			continue
		}
		out = append(out, Cluster{SenderID: m.SenderID, Messages: []Message{m}})
	}
	return out
}

func sameCluster(prev, next Message) bool {
	if prev.SenderID != next.SenderID {
		return false
	}
	a, errA := time.Parse(time.RFC3339Nano, prev.CreatedAt)
	b, errB := time.Parse(time.RFC3339Nano, next.CreatedAt)
	if errA != nil || errB != nil {
		return false
	}
	d := b.Sub(a)
	return d >= 0 && d < ClusterWindow
}

// ResolveStatus returns the badge of the last message when it is outgoing.
// An incoming last message means the local player has seen everything, so
// no badge is shown.
func ResolveStatus(msgs []Message, selfID string) (int64, MessageStatus) {
	if len(msgs) == 0 {
		return 0, StatusNone
	}
	last := msgs[len(msgs)-1]
	if last.SenderID != selfID {
		return 0, StatusNone
	}
	switch {
	case last.Status != StatusNone:
		return last.ID, last.Status
	case last.ReadAt != "":
		return last.ID, StatusRead
	default:
		return last.ID, StatusSent
	}
}
