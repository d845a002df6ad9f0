package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create definitions table, one row per stored version
			CREATE TABLE definitions (
				id UUID PRIMARY KEY,
				group_id VARCHAR(255) NOT NULL,
				parent_id VARCHAR(255),
				version INTEGER NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL,
				action_id VARCHAR(255) NOT NULL,
				branch_id VARCHAR(255) NOT NULL,
				department_id VARCHAR(255) NOT NULL,
				execution_mode VARCHAR(50) NOT NULL CHECK (execution_mode IN ('rigid', 'flexible')),
				stages JSONB NOT NULL DEFAULT '[]',
				status VARCHAR(50) NOT NULL CHECK (status IN ('draft', 'published', 'unpublished')),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				published_at TIMESTAMP WITH TIME ZONE,
				UNIQUE (group_id, version)
			);

			CREATE INDEX idx_definitions_group_id ON definitions(group_id);
			CREATE INDEX idx_definitions_status ON definitions(status);
			CREATE INDEX idx_definitions_parent_id ON definitions(parent_id);
		`,
		2: `
			-- At most one published version per group
			CREATE UNIQUE INDEX idx_definitions_published_group
				ON definitions(group_id) WHERE status = 'published';
		`,
	}
}
