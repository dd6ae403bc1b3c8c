package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/skalibog/bfsa/internal/analysis/aggregator"
	"github.com/skalibog/bfsa/internal/analysis/recommendation"
	"github.com/skalibog/bfsa/internal/analysis/volatility"
	"github.com/skalibog/bfsa/internal/config"
	"github.com/skalibog/bfsa/internal/exchange"
	"github.com/skalibog/bfsa/internal/notify"
	"github.com/skalibog/bfsa/internal/state"
	"github.com/skalibog/bfsa/internal/storage"
	"github.com/skalibog/bfsa/internal/ui"
	"github.com/skalibog/bfsa/pkg/logger"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var errNotifyFailed = errors.New("тестовое уведомление не доставлено")

func main() {
	// Обработка флагов командной строки
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	once := flag.Bool("once", false, "выполнить один цикл анализа, вывести таблицу и выйти")
	testNotify := flag.Bool("test-notify", false, "отправить тестовое уведомление в Telegram и выйти")
	flag.Parse()

	// Логгер еще не настроен, ошибки конфигурации выводятся в stderr
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	headless := *once || *testNotify || !cfg.UI.Enabled
	if err := logger.Init(logger.Options{
		Dir:     cfg.Log.Dir,
		Level:   cfg.Log.Level,
		Console: headless,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}

	for _, warning := range cfg.Warnings {
		logger.Warn("Конфигурация: " + warning)
	}
	logger.Info("Загружена конфигурация",
		zap.String("path", *configPath),
		zap.Bool("notify", cfg.Notify.Enabled),
		zap.Bool("storage", cfg.Storage.Enabled))

	// Создаем контекст, отменяемый сигналами завершения
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err = run(ctx, cfg, *once, *testNotify)
	cancel()
	if err != nil {
		logger.Error("Работа завершена с ошибкой", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(ctx context.Context, cfg *config.Config, once, testNotify bool) (err error) {
	logger.Info("Запуск BFSA",
		zap.Int("top_n", cfg.Trading.TopN),
		zap.String("timeframe", cfg.Trading.Timeframe),
		zap.Duration("interval", cfg.Analysis.Interval()))

	// Уведомления
	var notifier aggregator.Notifier
	if cfg.Notify.Enabled {
		notifier = notify.NewTelegram(cfg.Notify)
	}

	if testNotify {
		if notifier == nil {
			return errors.New("уведомления Telegram не настроены: задайте TG_BOT_TOKEN и TG_CHAT_ID")
		}
		if !notifier.Notify(ctx, notify.FormatTest()) {
			return errNotifyFailed
		}
		logger.Info("Тестовое уведомление отправлено")
		return nil
	}

	// Инициализируем клиент биржи
	client, err := exchange.NewBinanceClient(cfg.Binance)
	if err != nil {
		return fmt.Errorf("ошибка инициализации клиента биржи: %w", err)
	}

	// Хранилище метрик необязательно: без него анализ продолжается
	var sink aggregator.Sink
	if cfg.Storage.Enabled {
		store, storeErr := storage.NewInfluxDBStorage(ctx, cfg.Storage)
		if storeErr != nil {
			logger.Warn("Хранилище метрик недоступно, запись отключена", zap.Error(storeErr))
		} else {
			sink = store
			defer func() {
				err = multierr.Append(err, store.Close())
			}()
		}
	}

	analyzer := aggregator.NewAnalyzer(cfg,
		volatility.NewRanker(client, cfg.Trading),
		recommendation.NewEngine(client, cfg.Analysis),
		state.NewTracker(),
		notifier,
		sink,
	)

	if once {
		report := analyzer.RunCycle(ctx)
		fmt.Print(ui.Table(report.Recommendations))
		return nil
	}

	if !cfg.UI.Enabled {
		analyzer.Run(ctx, cfg.Analysis.Interval(), nil, func(report *aggregator.CycleReport) {
			fmt.Print(ui.Table(report.Recommendations))
		})
		return nil
	}

	// Запускаем циклы анализа в горутине, UI в основном потоке
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	trigger := make(chan struct{}, 1)
	termUI := ui.NewTermUI(cfg.UI, trigger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		analyzer.Run(runCtx, cfg.Analysis.Interval(), trigger, termUI.UpdateReport)
	}()

	go func() {
		// Сигнал завершения закрывает и UI
		<-runCtx.Done()
		termUI.Quit()
	}()

	uiErr := termUI.Start()
	stop()
	<-done

	if uiErr != nil {
		return fmt.Errorf("ошибка пользовательского интерфейса: %w", uiErr)
	}
	logger.Info("Завершение работы")
	return nil
}
