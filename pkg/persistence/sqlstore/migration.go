package sqlstore

// Documents are stored as JSON text next to the columns used for lookups.
// Timestamps are unix nanoseconds so both engines sort them the same way.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE runs (
				id VARCHAR(64) PRIMARY KEY,
				project_id VARCHAR(64) NOT NULL DEFAULT '',
				status VARCHAR(32) NOT NULL,
				created_at BIGINT NOT NULL,
				data TEXT NOT NULL
			);

			CREATE INDEX idx_runs_project_id ON runs(project_id);
			CREATE INDEX idx_runs_created_at ON runs(created_at);

			CREATE TABLE ai_jobs (
				id VARCHAR(64) PRIMARY KEY,
				project_dir VARCHAR(64) NOT NULL,
				status VARCHAR(32) NOT NULL,
				created_at BIGINT NOT NULL,
				finished_at BIGINT NOT NULL DEFAULT 0,
				data TEXT NOT NULL
			);

			CREATE INDEX idx_ai_jobs_project_dir ON ai_jobs(project_dir);
			CREATE INDEX idx_ai_jobs_created_at ON ai_jobs(created_at);
		`,
		2: `
			CREATE TABLE projects (
				id VARCHAR(64) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				created_at BIGINT NOT NULL,
				updated_at BIGINT NOT NULL,
				data TEXT NOT NULL
			);

			CREATE INDEX idx_projects_created_at ON projects(created_at);
		`,
	}
}
