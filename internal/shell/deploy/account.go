package deploy

import (
	"context"

	"github.com/artpar/flexdeploy/internal/core/domain"
)

// getAccount resolves the owning account. Account credentials name a fetchable
// account; every other kind is resolved from the runtime without a network
// call.
func (o *Orchestrator) getAccount(ctx context.Context, runtime domain.Runtime) (domain.Account, error) {
	switch o.creds.Kind {
	case domain.CredentialAccount:
		account, err := o.accounts.GetAccount(ctx, o.creds.Username)
		if err != nil {
			return domain.Account{}, domain.NewDeployError("get account", domain.ErrRemote, "", err)
		}
		return account, nil
	default:
		return domain.Account{Sid: runtime.Service.AccountSid}, nil
	}
}
