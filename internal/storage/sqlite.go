package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"mechrank/internal/evidence"
	"mechrank/internal/ranking"
	"mechrank/internal/report"
	"mechrank/internal/uncertainty"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists ranked runs and their evidence packs.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			command TEXT,
			generated_at TEXT,
			pairs_scored INTEGER,
			pairs_ranked INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS pairs (
			run_id TEXT,
			drug_id TEXT,
			disease_id TEXT,
			disease_name TEXT,
			mechanism_score REAL,
			safety_penalty REAL,
			trial_penalty REAL,
			risk_multiplier REAL,
			phenotype_boost REAL,
			final_score REAL,
			ci_lower REAL,
			ci_upper REAL,
			ci_width REAL,
			confidence_tier TEXT,
			n_evidence_paths INTEGER,
			PRIMARY KEY (run_id, drug_id, disease_id)
		);`,
		`CREATE TABLE IF NOT EXISTS evidence_packs (
			run_id TEXT,
			drug_id TEXT,
			disease_id TEXT,
			pack JSON,
			PRIMARY KEY (run_id, drug_id, disease_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_pairs_drug ON pairs(run_id, drug_id);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// SaveRun persists one run's summary, ranked rows and evidence packs in a
// single transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, rep *report.RunReport, pairs []*ranking.RankedPair, packs []*evidence.Pack) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, command, generated_at, pairs_scored, pairs_ranked)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			command=excluded.command,
			generated_at=excluded.generated_at,
			pairs_scored=excluded.pairs_scored,
			pairs_ranked=excluded.pairs_ranked
	`, rep.RunID, rep.Command, rep.GeneratedAt, rep.Summary.PairsScored, rep.Summary.PairsRanked); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pairs (run_id, drug_id, disease_id, disease_name,
			mechanism_score, safety_penalty, trial_penalty, risk_multiplier,
			phenotype_boost, final_score, ci_lower, ci_upper, ci_width,
			confidence_tier, n_evidence_paths)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, drug_id, disease_id) DO UPDATE SET
			disease_name=excluded.disease_name,
			mechanism_score=excluded.mechanism_score,
			safety_penalty=excluded.safety_penalty,
			trial_penalty=excluded.trial_penalty,
			risk_multiplier=excluded.risk_multiplier,
			phenotype_boost=excluded.phenotype_boost,
			final_score=excluded.final_score,
			ci_lower=excluded.ci_lower,
			ci_upper=excluded.ci_upper,
			ci_width=excluded.ci_width,
			confidence_tier=excluded.confidence_tier,
			n_evidence_paths=excluded.n_evidence_paths
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range pairs {
		if _, err := stmt.Exec(rep.RunID, p.DrugID, p.DiseaseID, p.DiseaseName,
			p.MechanismScore, p.SafetyPenalty, p.TrialPenalty, p.RiskMultiplier,
			p.PhenotypeBoost, p.FinalScore, p.CILower, p.CIUpper, p.CIWidth,
			string(p.ConfidenceTier), p.NEvidencePaths); err != nil {
			return err
		}
	}

	packStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO evidence_packs (run_id, drug_id, disease_id, pack)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, drug_id, disease_id) DO UPDATE SET pack=excluded.pack
	`)
	if err != nil {
		return err
	}
	defer packStmt.Close()

	for _, pack := range packs {
		raw, err := json.Marshal(pack)
		if err != nil {
			return err
		}
		if _, err := packStmt.Exec(rep.RunID, pack.DrugID, pack.DiseaseID, raw); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LatestRunID returns the most recently stored run.
func (s *SQLiteStore) LatestRunID(ctx context.Context) (string, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id FROM runs ORDER BY generated_at DESC, id DESC LIMIT 1")
	var id string
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("no runs stored")
		}
		return "", err
	}
	return id, nil
}

// LoadRankedPairs returns the stored ranked rows of a run, highest final
// score first.
func (s *SQLiteStore) LoadRankedPairs(ctx context.Context, runID string) ([]*ranking.RankedPair, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT drug_id, disease_id, disease_name, mechanism_score,
			safety_penalty, trial_penalty, risk_multiplier, phenotype_boost,
			final_score, ci_lower, ci_upper, ci_width, confidence_tier,
			n_evidence_paths
		FROM pairs WHERE run_id = ?
		ORDER BY final_score DESC, drug_id, disease_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pairs: %w", err)
	}
	defer rows.Close()

	var out []*ranking.RankedPair
	for rows.Next() {
		var p ranking.RankedPair
		var tier string
		if err := rows.Scan(&p.DrugID, &p.DiseaseID, &p.DiseaseName, &p.MechanismScore,
			&p.SafetyPenalty, &p.TrialPenalty, &p.RiskMultiplier, &p.PhenotypeBoost,
			&p.FinalScore, &p.CILower, &p.CIUpper, &p.CIWidth, &tier,
			&p.NEvidencePaths); err != nil {
			return nil, fmt.Errorf("failed to scan pair: %w", err)
		}
		p.ConfidenceTier = uncertainty.Tier(tier)
		out = append(out, &p)
	}
	return out, rows.Err()
}

// LoadEvidencePack returns one stored pack, or nil when absent.
func (s *SQLiteStore) LoadEvidencePack(ctx context.Context, runID, drugID, diseaseID string) (*evidence.Pack, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT pack FROM evidence_packs WHERE run_id = ? AND drug_id = ? AND disease_id = ?",
		runID, drugID, diseaseID)

	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	var pack evidence.Pack
	if err := json.Unmarshal(raw, &pack); err != nil {
		return nil, fmt.Errorf("failed to decode evidence pack: %w", err)
	}
	return &pack, nil
}
