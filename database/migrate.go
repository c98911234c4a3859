package database

import (
	"database/sql"
	"fmt"
)

var (
	createProposalsTableSQL = `
CREATE TABLE IF NOT EXISTS %s_proposals (
    id                     BIGSERIAL     PRIMARY KEY,
    council_id             VARCHAR       NOT NULL,
    kind                   VARCHAR       NOT NULL,
    urgency                VARCHAR       NOT NULL,
    subject_ref            VARCHAR       NOT NULL DEFAULT '',
    current_value          BIGINT,
    proposed_value         BIGINT,
    reasoning              TEXT          NOT NULL,
    evidence_ref           VARCHAR       NOT NULL DEFAULT '',
    creator_id             VARCHAR       NOT NULL,
    created_at             TIMESTAMPTZ   NOT NULL,
    voting_deadline        TIMESTAMPTZ   NOT NULL,
    status                 VARCHAR       NOT NULL,
    votes_for              BIGINT        NOT NULL DEFAULT 0,
    votes_against          BIGINT        NOT NULL DEFAULT 0,
    votes_abstain          BIGINT        NOT NULL DEFAULT 0,
    total_power_snapshot   BIGINT,
    finalized_at           TIMESTAMPTZ,
    executed_at            TIMESTAMPTZ,
    execution_ref          VARCHAR
);`

	createVotesTableSQL = `
CREATE TABLE IF NOT EXISTS %s_votes (
    proposal_id    BIGINT        NOT NULL,
    voter_id       VARCHAR       NOT NULL,
    choice         VARCHAR       NOT NULL,
    voting_power   BIGINT        NOT NULL,
    reasoning      TEXT          NOT NULL,
    cast_at        TIMESTAMPTZ   NOT NULL,

    PRIMARY KEY (proposal_id, voter_id)
);`

	// Serves the scheduler scan (status = ACTIVE AND voting_deadline <= now)
	// and the dispatcher scan over APPROVED proposals.
	createDeadlineIndexSQL = `
CREATE INDEX IF NOT EXISTS %s_proposals_due_idx
ON %s_proposals (status, voting_deadline);`
)

// Migrate creates the proposals and votes tables with indexes.
func Migrate(db *sql.DB, tableName string) error {
	if err := createProposalsTable(db, tableName); err != nil {
		return err
	}

	if err := createVotesTable(db, tableName); err != nil {
		return err
	}

	if err := createDeadlineIndex(db, tableName); err != nil {
		return err
	}

	return nil
}

func createProposalsTable(db *sql.DB, tableName string) error {
	var query = fmt.Sprintf(createProposalsTableSQL, tableName)
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create proposals table: %w", err)
	}
	return nil
}

func createVotesTable(db *sql.DB, tableName string) error {
	var query = fmt.Sprintf(createVotesTableSQL, tableName)
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create votes table: %w", err)
	}
	return nil
}

func createDeadlineIndex(db *sql.DB, tableName string) error {
	var query = fmt.Sprintf(createDeadlineIndexSQL, tableName, tableName)
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create deadline index: %w", err)
	}
	return nil
}
