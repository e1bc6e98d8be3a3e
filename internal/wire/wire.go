package wire

import (
	"SportHub/internal/api"
	"SportHub/internal/api/config"
	"SportHub/internal/api/handler"
	"SportHub/internal/job"
	"SportHub/internal/pkg/cache"
	"SportHub/internal/pkg/cron"
	"SportHub/internal/pkg/es"
	"SportHub/internal/pkg/kafka"
	mongorepo "SportHub/internal/pkg/mongo"
	"SportHub/internal/pkg/push"
	"SportHub/internal/realtime"
	"SportHub/internal/repository"
	"SportHub/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// ApplicationContainer 封装了应用运行所需的所有顶级组件
type ApplicationContainer struct {
	Router       *gin.Engine
	DB           *gorm.DB
	KafkaManager *kafka.ConsumerManager
	CronMgr      *cron.Manager
}

func BuildApplication(db *gorm.DB, mongoDB *mongo.Database, cfg *config.Config) (*ApplicationContainer, error) {
	userRepo := repository.NewUserRepo(db)
	convRepo := repository.NewConversationRepo(db)
	messageRepo := mongorepo.NewMessageRepo(mongoDB)
	notifyRepo := mongorepo.NewNotifyRepo(mongoDB)
	userESRepo := es.NewUserRepo()

	store := cache.NewMemoryStore()
	bus := realtime.NewRedisBus()
	pusher := push.NewSender()

	userService := service.NewUserService(userRepo, userESRepo)
	imService := service.NewIMService(convRepo, messageRepo, userRepo, store, bus, pusher)
	notifyService := service.NewNotifyService(notifyRepo, userRepo, bus, pusher)

	// 会话订阅管理器：已读回执直接走 IM 服务，
	// 反向把在线状态喂给发送路径，决定是否离线推送
	manager := realtime.NewManager(bus, store, imService)
	imService.BindPresence(manager)

	handlers := &api.HandlersGroup{
		UserHandler:   handler.NewUserHandler(userService),
		IMHandler:     handler.NewIMHandler(imService),
		NotifyHandler: handler.NewNotifyHandler(notifyService),
		MediaHandler:  handler.NewMediaHandler(),
		WsHandler:     handler.NewWsHandler(imService, notifyService, manager, bus),
	}

	router := api.SetupRouter(handlers)

	kafkaMgr, err := kafka.NewConsumerManager(cfg, notifyService, userESRepo)
	if err != nil {
		return nil, err
	}

	cronMgr := cron.NewCronManager(job.NewNotifyCleanJob(notifyRepo))

	return &ApplicationContainer{
		Router:       router,
		DB:           db,
		KafkaManager: kafkaMgr,
		CronMgr:      cronMgr,
	}, nil
}
