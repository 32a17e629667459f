package mockapi

import (
	"fmt"
	"time"

	"github.com/jrsteele09/go-rag-client/internal/utils"
	"github.com/jrsteele09/go-rag-client/users"
)

// Demo account seeded on start.
const (
	DemoEmail    = "test@example.com"
	DemoPassword = "test123"
)

type seedUser struct {
	email, password, first, last string
	role                         users.RoleType
}

var seedUsers = []seedUser{
	{DemoEmail, DemoPassword, "Test", "Student", users.RoleStudent},
	{"teacher@example.com", "teacher123", "Ada", "Teacher", users.RoleTeacher},
}

var seedDocuments = []struct{ id, filename, content string }{
	{"doc_001", "rag_introduction.md", `Retrieval-augmented generation combines a search step with a language model. The model answers using passages retrieved from a document collection.

Documents are split into chunks before indexing. Each chunk is small enough to fit in the model context window alongside the question.`},
	{"doc_002", "vector_search.txt", `Vector embeddings map text to points in a high dimensional space. Similar passages end up close together.

Semantic search ranks chunks by the similarity between the query embedding and each chunk embedding. A threshold drops weak matches.`},
	{"doc_003", "course_syllabus.pdf", `The course runs for ten weeks. Weekly quizzes count for thirty percent of the grade and the final exam for seventy percent.

To prepare for the final exam review the weekly quizzes and the reading list.`},
}

// InitialiseSystem seeds the demo users and course documents. Existing users are left alone.
func (s *Server) InitialiseSystem() error {
	for _, su := range seedUsers {
		if _, err := s.users.GetByEmail(su.email); err == nil {
			continue
		}
		hash, err := users.HashPassword(su.password)
		if err != nil {
			return fmt.Errorf("[mockapi InitialiseSystem] hash password for %s: %w", su.email, err)
		}
		if err := s.users.Upsert(&users.User{
			Email:        su.email,
			FirstName:    su.first,
			LastName:     su.last,
			Role:         su.role,
			CreatedAt:    utils.NewTimestamp(time.Now()),
			PasswordHash: hash,
		}); err != nil {
			return fmt.Errorf("[mockapi InitialiseSystem] create user %s: %w", su.email, err)
		}
	}

	for _, d := range seedDocuments {
		s.library.Add(d.id, d.filename, "", []byte(d.content))
	}

	if s.env == "DEV" {
		s.log.Info().Msgf("Demo account: %s / %s", DemoEmail, DemoPassword)
	}
	return nil
}
