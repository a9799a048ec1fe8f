package store

import (
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/projectcore/changecontrol/internal/apierr"
	"github.com/projectcore/changecontrol/internal/domain"
)

// seedFile is the shape of a SEED_FILE document: a handful of projects,
// each carrying its own tasks, loaded once at startup.
type seedFile struct {
	Projects []seedProject `yaml:"projects"`
}

type seedProject struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Icon        string     `yaml:"icon"`
	Tasks       []seedTask `yaml:"tasks"`
}

type seedTask struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Status      string   `yaml:"status"`
	Priority    string   `yaml:"priority"`
	Assignee    string   `yaml:"assignee"`
	WBS         string   `yaml:"wbs"`
	IsMilestone bool     `yaml:"isMilestone"`
	Predecessors []string `yaml:"predecessors"`
}

// LoadSeedFile applies a SEED_FILE exactly once, tracked by a key derived
// from the file path in seed_meta. Re-running against an already-seeded
// database is a no-op, so operators can leave SEED_FILE set across restarts.
func (s *Store) LoadSeedFile(path string, now int64) error {
	key := "seed:" + path

	var applied int
	row := s.db.QueryRow(`SELECT COUNT(*) FROM seed_meta WHERE key = ?`, key)
	if err := row.Scan(&applied); err != nil {
		return apierr.Internalf(err, "failed to check seed state")
	}
	if applied > 0 {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return apierr.Internalf(err, "failed to read seed file %s", path)
	}

	var doc seedFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return apierr.Validationf("failed to parse seed file %s: %v", path, err)
	}

	return s.WithTransaction(func(tx *Tx) error {
		for _, sp := range doc.Projects {
			p := &domain.Project{
				ID:        uuid.NewString(),
				Slug:      slugify(sp.Name),
				Name:      sp.Name,
				CreatedAt: now,
			}
			if sp.Description != "" {
				p.Description = &sp.Description
			}
			if sp.Icon != "" {
				p.Icon = &sp.Icon
			}
			if err := tx.InsertProject(p); err != nil {
				return err
			}

			for _, st := range sp.Tasks {
				t := &domain.Task{
					ID:           uuid.NewString(),
					ProjectID:    p.ID,
					Title:        st.Title,
					Status:       domain.TaskTODO,
					Priority:     domain.PriorityMedium,
					CreatedAt:    now,
					Predecessors: append([]string{}, st.Predecessors...),
				}
				if st.Description != "" {
					t.Description = &st.Description
				}
				if st.Status != "" {
					t.Status = domain.TaskStatus(st.Status)
				}
				if st.Priority != "" {
					t.Priority = domain.TaskPriority(st.Priority)
				}
				if st.Assignee != "" {
					t.Assignee = &st.Assignee
				}
				if st.WBS != "" {
					t.WBS = &st.WBS
				}
				t.IsMilestone = st.IsMilestone

				if err := tx.InsertTask(t); err != nil {
					return err
				}
			}
		}

		_, err := tx.tx.Exec(`INSERT INTO seed_meta (key, applied_at) VALUES (?, ?)`, key, now)
		if err != nil {
			return apierr.Internalf(err, "failed to record seed application")
		}
		return nil
	})
}

func slugify(name string) string {
	out := make([]rune, 0, len(name))
	lastDash := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
			lastDash = false
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
			lastDash = false
		default:
			if !lastDash && len(out) > 0 {
				out = append(out, '-')
				lastDash = true
			}
		}
	}
	for len(out) > 0 && out[len(out)-1] == '-' {
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return uuid.NewString()
	}
	return string(out)
}
