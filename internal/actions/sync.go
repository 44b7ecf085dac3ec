package actions

import (
	"context"

	"github.com/google/uuid"

	"github.com/shopopti/extension-gateway/internal/gateway"
)

const maxSyncProducts = 500

// syncHandler builds the handler for one sync job type ("stock" or "price").
// Sync is asynchronous: the handler only queues a job and returns its id.
func (s *Service) syncHandler(jobType string) gateway.Handler {
	return func(ctx context.Context, req gateway.HandlerRequest) (any, error) {
		var p struct {
			ProductIDs []string `json:"productIds"`
		}
		if err := decodePayload(syncPayloadSchema, req.Payload, &p); err != nil {
			return nil, err
		}
		if len(p.ProductIDs) == 0 {
			return nil, gateway.NewError(gateway.CodeInvalidPayload, "productIds must not be empty")
		}
		if len(p.ProductIDs) > maxSyncProducts {
			return nil, gateway.Errorf(gateway.CodeInvalidPayload, "at most %d products per sync job", maxSyncProducts)
		}
		for _, id := range p.ProductIDs {
			if _, err := uuid.Parse(id); err != nil {
				return nil, gateway.NewError(gateway.CodeInvalidPayload, "productIds must be UUIDs").
					WithDetail("received", id)
			}
		}

		job, err := s.store.EnqueueSyncJob(ctx, req.Caller.UserID, jobType, p.ProductIDs)
		if err != nil {
			return nil, gateway.Errorf(gateway.CodeHandlerError, "failed to queue sync job: %v", err)
		}
		s.log.Info("sync job queued",
			"userId", req.Caller.UserID, "jobId", job.ID, "type", jobType, "products", len(p.ProductIDs))

		return map[string]any{
			"jobId":        job.ID,
			"status":       "queued",
			"productCount": len(p.ProductIDs),
		}, nil
	}
}
