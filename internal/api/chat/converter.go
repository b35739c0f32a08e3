package chat

import "github.com/futig/docchat-backend/internal/entity"

const (
	statusSuccess             = "success"
	statusReady               = "ready"
	statusWaitingForDocuments = "waiting_for_documents"
)

func toQueryResponse(a *entity.Answer) *entity.QueryResponse {
	sources := a.Sources
	if sources == nil {
		sources = []entity.Source{}
	}

	// One entry per cited file, in ranking order.
	seen := make(map[string]struct{}, len(sources))
	files := make([]string, 0, len(sources))
	for _, s := range sources {
		if _, ok := seen[s.Filename]; ok {
			continue
		}
		seen[s.Filename] = struct{}{}
		files = append(files, s.Filename)
	}

	return &entity.QueryResponse{
		Response:        a.Response,
		SourceDocuments: files,
		Sources:         sources,
		SessionID:       a.SessionID,
		Status:          statusSuccess,
	}
}

func toSessionDTO(s *entity.Session) *entity.SessionDTO {
	messages := make([]entity.MessageDTO, 0, len(s.Messages))
	for _, m := range s.Messages {
		messages = append(messages, entity.MessageDTO{
			Role:      m.Role,
			Content:   m.Content,
			Sources:   m.Sources,
			Timestamp: m.CreatedAt,
		})
	}

	return &entity.SessionDTO{
		ID:          s.ID,
		Title:       s.Title,
		CreatedAt:   s.CreatedAt,
		LastUpdated: s.LastUpdated,
		Messages:    messages,
	}
}

func toListSessionsResponse(sessions []*entity.SessionSummary) *entity.ListSessionsResponse {
	resp := &entity.ListSessionsResponse{Sessions: make([]entity.SessionSummary, 0, len(sessions))}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, *s)
	}
	return resp
}

func toStatusResponse(s *entity.VectorStoreStatus) *entity.StatusResponse {
	status := statusWaitingForDocuments
	if s.Available {
		status = statusReady
	}
	return &entity.StatusResponse{
		VectorstoreAvailable: s.Available,
		DocumentCount:        s.DocumentCount,
		ChunkCount:           s.ChunkCount,
		Status:               status,
	}
}
