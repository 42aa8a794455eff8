package graphql

import (
	"context"

	"github.com/ButyrinIA/socialgraph/internal/models"
	"github.com/ButyrinIA/socialgraph/internal/storage"
	"github.com/graph-gophers/dataloader/v7"
)

// NewProfileLoader создает загрузчик профилей с батчингом по userID.
// Загрузчик живет один запрос: сервер кладет его в контекст, резолверы
// полей достают оттуда. Отсутствующий профиль - nil без ошибки.
func NewProfileLoader(store storage.Storage) *dataloader.Loader[int64, *models.Profile] {
	return dataloader.NewBatchedLoader(
		func(ctx context.Context, userIDs []int64) []*dataloader.Result[*models.Profile] {
			results := make([]*dataloader.Result[*models.Profile], len(userIDs))
			profiles, err := store.GetProfilesByUserIDs(ctx, userIDs)
			for i, uid := range userIDs {
				if err != nil {
					results[i] = &dataloader.Result[*models.Profile]{Error: err}
					continue
				}
				results[i] = &dataloader.Result[*models.Profile]{Data: profiles[uid]}
			}
			return results
		},
	)
}
