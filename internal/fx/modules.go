package fx

import (
	"valorantsl/internal/api"
	"valorantsl/internal/config"
	"valorantsl/internal/database"
	"valorantsl/internal/discord"
	"valorantsl/internal/logger"
	"valorantsl/internal/repository"
	"valorantsl/internal/server"
	"valorantsl/internal/service"
	"valorantsl/internal/worker"

	"go.uber.org/fx"
)

func provideRankAPI(c *api.HenrikClient) service.RankAPI { return c }

func provideAccountStore(r *repository.AccountRepository) service.AccountStore { return r }

func provideHistoryStore(r *repository.RankHistoryRepository) service.HistoryStore { return r }

func provideAccountLister(r *repository.AccountRepository) worker.AccountLister { return r }

func provideRefresher(s *service.AccountService) worker.Refresher { return s }

func provideGuildClient(c *discord.Client) worker.GuildClient { return c }

func provideLeaderboardSource(s *service.AccountService) worker.LeaderboardSource { return s }

func provideLinkCorrector(r *repository.AccountRepository) worker.LinkCorrector { return r }

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewAccountRepository),
	fx.Provide(repository.NewRankHistoryRepository),
	// external clients
	fx.Provide(api.NewHenrikClient),
	fx.Provide(discord.NewClient),
	// svc
	fx.Provide(service.NewAccountService),
	// workers
	fx.Provide(worker.DefaultRankSyncConfig),
	fx.Provide(worker.DefaultRoleSyncConfig),
	fx.Provide(worker.NewRankSyncWorker),
	fx.Provide(worker.NewRoleSyncWorker),
	// server
	fx.Provide(server.NewServer),
	// interface bindings
	fx.Provide(provideRankAPI),
	fx.Provide(provideAccountStore),
	fx.Provide(provideHistoryStore),
	fx.Provide(provideAccountLister),
	fx.Provide(provideRefresher),
	fx.Provide(provideGuildClient),
	fx.Provide(provideLeaderboardSource),
	fx.Provide(provideLinkCorrector),
)
