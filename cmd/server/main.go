// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatrag-go/internal/config"
	"chatrag-go/internal/handler"
	"chatrag-go/internal/memory"
	"chatrag-go/internal/middleware"
	"chatrag-go/internal/pipeline"
	"chatrag-go/internal/prompt"
	"chatrag-go/internal/repository"
	"chatrag-go/internal/service"
	"chatrag-go/internal/tenant"
	"chatrag-go/pkg/database"
	"chatrag-go/pkg/embedding"
	"chatrag-go/pkg/es"
	"chatrag-go/pkg/kafka"
	"chatrag-go/pkg/llm"
	"chatrag-go/pkg/log"
	"chatrag-go/pkg/rerank"
	"chatrag-go/pkg/tokenizer"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis、Elasticsearch 与 Kafka
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	if err := es.InitES(cfg.Elasticsearch, cfg.Embedding.Dimensions); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)

	// 4. 加载租户注册表
	registry, err := tenant.Load(cfg.Tenants.File)
	if err != nil {
		log.Fatalf("加载租户配置失败: %v", err)
	}

	// 5. 初始化 Repository
	historyRepo := repository.NewHistoryRepository(database.DB)
	chunkRepo := repository.NewChunkRepository(database.DB)

	// 6. 初始化外部服务客户端
	embeddingClient := embedding.WithCache(
		embedding.NewClient(cfg.Embedding),
		database.RDB,
		cfg.Embedding.Model,
		cfg.Embedding.CacheTTLHours,
	)
	llmClient := llm.NewClient(cfg.LLM)
	var rerankClient rerank.Client
	if cfg.Rerank.Enabled {
		rerankClient = rerank.NewClient(cfg.Rerank)
		log.Info("重排序已启用")
	}
	counter, err := tokenizer.NewCounter(cfg.LLM.Model)
	if err != nil {
		log.Fatalf("初始化 tokenizer 失败: %v", err)
	}

	// 7. 初始化 Service (依赖注入)
	memoryStore := memory.NewStore(cfg.Chat.MemoryCapacity, cfg.Chat.MemoryMaxTurns, cfg.Chat.MemoryTTLHours)
	assembler := prompt.NewAssembler(counter, cfg.LLM.MaxPromptTokens)
	searchBackend := es.NewBackend(es.ESClient, cfg.Elasticsearch.IndexName)
	metadataService := service.NewMetadataService(llmClient)
	searchService := service.NewSearchService(searchBackend, embeddingClient, rerankClient, cfg.Chat.LexicalWeight, cfg.Chat.VectorWeight)
	chatService := service.NewChatService(registry, embeddingClient, metadataService, searchService, assembler, llmClient, memoryStore, historyRepo, cfg.Chat.TopK)
	routerService := service.NewRouterService(llmClient)
	documentService := service.NewDocumentService(chunkRepo, cfg.Elasticsearch.IndexName)

	// 8. 初始化摄取流水线 (Processor)
	processor := pipeline.NewProcessor(chunkRepo, embeddingClient, cfg.Elasticsearch.IndexName, cfg.Embedding.Model)

	// 9. 启动后台 Kafka 消费者
	go kafka.StartConsumer(cfg.Kafka, processor)

	// 10. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加我们自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 11. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		// Chat 路由组
		chat := apiV1.Group("/chat")
		{
			chatHandler := handler.NewChatHandler(chatService, historyRepo)
			historyHandler := handler.NewHistoryHandler(historyRepo, cfg.Chat.HistoryLimit)
			chat.POST("", chatHandler.Chat)
			chat.POST("/instances", historyHandler.CreateInstance)
			chat.GET("/instances", historyHandler.ListInstances)
			chat.GET("/history", historyHandler.GetHistory)
		}

		// Decision 路由：查询路由分类，文档问答直通检索流水线
		apiV1.POST("/decision", handler.NewDecisionHandler(routerService, chatService).Decide)

		// Search 路由组
		search := apiV1.Group("/search")
		{
			search.GET("/hybrid", handler.NewSearchHandler(searchService, cfg.Chat.TopK).HybridSearch)
		}

		// Document 路由组
		documents := apiV1.Group("/documents")
		{
			documentHandler := handler.NewDocumentHandler(documentService)
			documents.POST("/chunks", documentHandler.SubmitChunks)
			documents.DELETE("/:documentId", documentHandler.DeleteDocument)
			documents.GET("", documentHandler.ListDocuments)
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	// Kafka 消费循环会随进程退出自然结束，无需单独关闭。
	log.Info("服务已优雅关闭")
}
