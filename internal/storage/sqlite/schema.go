package sqlite

// Schema creates the tables used by Store. created_at holds unix nanoseconds.
const Schema = `
CREATE TABLE IF NOT EXISTS applicants (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	name                  TEXT NOT NULL DEFAULT '',
	applied_role          TEXT NOT NULL DEFAULT '',
	location              TEXT NOT NULL DEFAULT '',
	years_experience      REAL,
	expected_compensation TEXT NOT NULL DEFAULT '',
	resume_ref            TEXT NOT NULL DEFAULT '',
	cover_letter_ref      TEXT NOT NULL DEFAULT '',
	created_at            INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS applicant_scores (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	applicant_id    INTEGER NOT NULL REFERENCES applicants(id) ON DELETE CASCADE,
	model           TEXT NOT NULL,
	version         TEXT NOT NULL,
	provenance      TEXT NOT NULL DEFAULT 'strict',
	overall_score   REAL,
	experience_fit  REAL,
	skills_fit      REAL,
	culture_fit     REAL,
	location_fit    REAL,
	risk_flags      TEXT NOT NULL DEFAULT '[]',
	strengths       TEXT NOT NULL DEFAULT '[]',
	recommendations TEXT NOT NULL DEFAULT '[]',
	rationale       TEXT NOT NULL DEFAULT '',
	raw             TEXT NOT NULL DEFAULT '{}',
	created_at      INTEGER NOT NULL,
	UNIQUE (applicant_id, model, version)
);

CREATE INDEX IF NOT EXISTS idx_applicant_scores_latest
	ON applicant_scores (applicant_id, created_at DESC, id DESC);
`
