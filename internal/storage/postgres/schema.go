package postgres

// Schema creates the tables used by Store. Statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS applicants (
	id                    BIGSERIAL PRIMARY KEY,
	name                  TEXT NOT NULL DEFAULT '',
	applied_role          TEXT NOT NULL DEFAULT '',
	location              TEXT NOT NULL DEFAULT '',
	years_experience      DOUBLE PRECISION,
	expected_compensation TEXT NOT NULL DEFAULT '',
	resume_ref            TEXT NOT NULL DEFAULT '',
	cover_letter_ref      TEXT NOT NULL DEFAULT '',
	created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS applicant_scores (
	id              BIGSERIAL PRIMARY KEY,
	applicant_id    BIGINT NOT NULL REFERENCES applicants(id) ON DELETE CASCADE,
	model           TEXT NOT NULL,
	version         TEXT NOT NULL,
	provenance      TEXT NOT NULL DEFAULT 'strict',
	overall_score   DOUBLE PRECISION,
	experience_fit  DOUBLE PRECISION,
	skills_fit      DOUBLE PRECISION,
	culture_fit     DOUBLE PRECISION,
	location_fit    DOUBLE PRECISION,
	risk_flags      JSONB NOT NULL DEFAULT '[]',
	strengths       JSONB NOT NULL DEFAULT '[]',
	recommendations JSONB NOT NULL DEFAULT '[]',
	rationale       TEXT NOT NULL DEFAULT '',
	raw             JSONB NOT NULL DEFAULT '{}',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (applicant_id, model, version)
);

CREATE INDEX IF NOT EXISTS idx_applicant_scores_latest
	ON applicant_scores (applicant_id, created_at DESC, id DESC);
`
