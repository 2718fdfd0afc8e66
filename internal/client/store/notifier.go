package store

import "sync"

// Table names of the local store.
type Table string

const (
	TableVehicles        Table = "vehicles"
	TableMaintenanceLogs Table = "maintenance_logs"
	TableDocuments       Table = "documents"
	TableDocumentPages   Table = "document_pages"
)

// AllTables lists every entity table, in parent-before-child order.
func AllTables() []Table {
	return []Table{TableVehicles, TableMaintenanceLogs, TableDocuments, TableDocumentPages}
}

// Notifier fans out "these tables changed" signals to subscribers after a
// transaction commits. Delivery is synchronous: Publish calls every matching
// subscriber before returning, so observers see a new snapshot as soon as
// the write that caused it completes.
type Notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber
}

type subscriber struct {
	tables map[Table]struct{}
	notify func()
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]*subscriber)}
}

// Subscribe registers notify to run whenever a committed transaction touches
// any of tables. The returned function cancels the subscription.
func (n *Notifier) Subscribe(tables []Table, notify func()) (cancel func()) {
	set := make(map[Table]struct{}, len(tables))
	for _, t := range tables {
		set[t] = struct{}{}
	}

	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = &subscriber{tables: set, notify: notify}
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

// Publish notifies every subscriber interested in at least one of the
// touched tables.
func (n *Notifier) Publish(touched map[Table]struct{}) {
	if len(touched) == 0 {
		return
	}

	n.mu.Lock()
	matched := make([]func(), 0, len(n.subs))
	for _, s := range n.subs {
		for t := range touched {
			if _, ok := s.tables[t]; ok {
				matched = append(matched, s.notify)
				break
			}
		}
	}
	n.mu.Unlock()

	for _, notify := range matched {
		notify()
	}
}
