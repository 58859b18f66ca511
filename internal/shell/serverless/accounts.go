package serverless

import (
	"context"

	"github.com/artpar/flexdeploy/internal/core/domain"
)

type accountResponse struct {
	Sid          string `json:"sid"`
	FriendlyName string `json:"friendly_name"`
}

// GetAccount fetches an account by sid.
func (c *Client) GetAccount(ctx context.Context, accountSid string) (domain.Account, error) {
	var result accountResponse
	url := c.accountsURL + "/2010-04-01/Accounts/" + accountSid + ".json"
	if err := c.getJSON(ctx, "get account", url, &result); err != nil {
		return domain.Account{}, err
	}
	return domain.Account{Sid: result.Sid}, nil
}
