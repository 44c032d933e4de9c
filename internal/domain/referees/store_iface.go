package referees

import "context"

type StoreAPI interface {
	ListReferees(ctx context.Context) ([]Referee, error)
	GetReferee(ctx context.Context, employeeNumber string) (Referee, error)
	CreateReferee(ctx context.Context, referee Referee) (Referee, error)
	UpdateReferee(ctx context.Context, employeeNumber string, referee Referee) (Referee, error)
	DeleteReferee(ctx context.Context, employeeNumber string) error
	ListSettings(ctx context.Context) ([]Settings, error)
	GetSettings(ctx context.Context, employeeNumber string) (Settings, bool, error)
	UpsertSettings(ctx context.Context, settings Settings) (Settings, error)
	DeleteSettings(ctx context.Context, employeeNumber string) error
}
