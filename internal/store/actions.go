package store

import "fmt"

// ActionType enumerates the indexer-management actions the reconciler queues
// for the operator to carry out on chain.
type ActionType string

const (
	ActionAllocate      ActionType = "allocate"
	ActionReallocate    ActionType = "reallocate"
	ActionUnallocate    ActionType = "unallocate"
	ActionCollectReward ActionType = "collect"
)

// ActionStatus tracks where an action is in its lifecycle.
type ActionStatus string

const (
	ActionQueued   ActionStatus = "queued"
	ActionApproved ActionStatus = "approved"
	ActionSuccess  ActionStatus = "success"
	ActionFailed   ActionStatus = "failed"
)

// Action is a single queued operation against a deployment, recorded so the
// reconciliation history survives a restart.
type Action struct {
	ID              int64
	ProtocolNetwork string
	Deployment      string
	Type            ActionType
	Status          ActionStatus
}

type actionRow struct {
	ID              int64  `db:"id"`
	ProtocolNetwork string `db:"protocol_network"`
	Deployment      string `db:"deployment"`
	Type            string `db:"type"`
	Status          string `db:"status"`
}

func (r actionRow) toAction() Action {
	return Action{
		ID:              r.ID,
		ProtocolNetwork: r.ProtocolNetwork,
		Deployment:      r.Deployment,
		Type:            ActionType(r.Type),
		Status:          ActionStatus(r.Status),
	}
}

// QueueAction inserts a new action row in the queued state.
func (s *Store) QueueAction(network string, deployment string, actionType ActionType) (Action, error) {
	var id int64
	err := s.db.Get(&id, `
		INSERT INTO actions (protocol_network, deployment, type, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		network, deployment, string(actionType), string(ActionQueued))
	if err != nil {
		return Action{}, fmt.Errorf("queue %s action for %s/%s: %w", actionType, network, deployment, err)
	}
	return Action{ID: id, ProtocolNetwork: network, Deployment: deployment, Type: actionType, Status: ActionQueued}, nil
}

// FetchActions returns queued actions for network, optionally filtered by
// status. An empty status fetches every action regardless of status.
func (s *Store) FetchActions(network string, status ActionStatus) ([]Action, error) {
	var rows []actionRow
	var err error
	if status == "" {
		err = s.db.Select(&rows, `SELECT * FROM actions WHERE protocol_network = $1 ORDER BY id`, network)
	} else {
		err = s.db.Select(&rows, `SELECT * FROM actions WHERE protocol_network = $1 AND status = $2 ORDER BY id`,
			network, string(status))
	}
	if err != nil {
		return nil, fmt.Errorf("fetch actions for %s: %w", network, err)
	}

	actions := make([]Action, 0, len(rows))
	for _, r := range rows {
		actions = append(actions, r.toAction())
	}
	return actions, nil
}

// UpdateActionStatus transitions an action to a new status, e.g. once its
// transaction has confirmed or failed on chain.
func (s *Store) UpdateActionStatus(id int64, status ActionStatus) error {
	_, err := s.db.Exec(`UPDATE actions SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("update action %d to %s: %w", id, status, err)
	}
	return nil
}
