package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/cineshelfapp/cineshelf/internal/errors"
	"github.com/cineshelfapp/cineshelf/internal/snapshot"
)

func (s *Server) registerBackupListRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listBackups",
		Method:      http.MethodGet,
		Path:        "/api/v1/backups",
		Summary:     "List stored backups",
		Description: "Lists every stored snapshot, newest first",
		Tags:        []string{"Backups"},
	}, s.handleListBackups)
}

// ListBackupsInput filters the backup listing.
type ListBackupsInput struct {
	User string `query:"user" validate:"omitempty,max=100" doc:"Only list backups whose identifier contains this value"`
}

// BackupListResponse contains the stored backups.
type BackupListResponse struct {
	Total   int                   `json:"total" doc:"Number of backups listed"`
	Backups []snapshot.BackupInfo `json:"backups" doc:"Stored backups, newest first"`
}

// BackupListOutput wraps the listing for Huma.
type BackupListOutput struct {
	Body BackupListResponse
}

func (s *Server) handleListBackups(ctx context.Context, input *ListBackupsInput) (*BackupListOutput, error) {
	infos, err := s.snapshots.List(ctx)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to list backups")
	}

	out := make([]snapshot.BackupInfo, 0, len(infos))
	if input.User == "" {
		out = append(out, infos...)
	} else {
		user, err := snapshot.Sanitize(input.User)
		if err != nil {
			return nil, err
		}
		for _, info := range infos {
			if strings.Contains(info.UserPart, user) {
				out = append(out, info)
			}
		}
	}

	return &BackupListOutput{
		Body: BackupListResponse{Total: len(out), Backups: out},
	}, nil
}
