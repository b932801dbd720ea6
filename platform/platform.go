package platform

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/a2a"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/agent"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/document"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/engine"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/httpx"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/ident"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/knowledge"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/logging"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/messaging"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/registry"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/schedule"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/secret"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/task"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/usage"
)

const shutdownGrace = 5 * time.Second

// Platform owns the shared clients, the registry and every capability
// service. One Platform is created at init and lives for the process.
type Platform struct {
	opts          Options
	defaultTenant string
	logger        *zap.Logger
	uploader      *logging.Uploader

	http   *httpx.Client
	engine *engine.Client
	reg    *registry.Registry

	runner        *agent.Runner
	taskWorkflows *task.Workflows

	msgActs       *messaging.Activities
	a2aActs       *a2a.Activities
	scheduleActs  *schedule.Activities
	knowledgeActs *knowledge.Activities
	documentActs  *document.Activities
	secretActs    *secret.Activities

	// Capability facades exposed to agent handlers.
	Messenger  *messaging.Messenger
	Dispatcher *a2a.Dispatcher
	Tasks      *task.Starter
	Schedules  *schedule.Service
	Knowledge  *knowledge.Service
	Documents  *document.Service
	Secrets    *secret.Service
	Usage      *usage.Reporter

	workers []worker.Worker
}

// New assembles the platform from options. Nothing connects to the engine
// until Start.
func New(opts Options) (*Platform, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	defaultTenant, err := opts.ResolveTenant()
	if err != nil {
		return nil, err
	}

	// The shared client and the uploader report through a console-only logger;
	// routing them through the server sink would feed their own failures back
	// into the upload path.
	console := logging.New(logging.ParseLevel(opts.ConsoleLogLevel), nil, 0)

	httpClient, err := httpx.New(httpx.Config{BaseURL: opts.ServerURL, APIKey: opts.APIKey}, console)
	if err != nil {
		return nil, err
	}

	var uploader *logging.Uploader
	if !opts.LocalMode {
		uploader = logging.NewUploader(httpClient, logging.UploaderConfig{DefaultTenant: defaultTenant}, console)
	}
	logger := logging.New(logging.ParseLevel(opts.ConsoleLogLevel), uploader, logging.ParseLevel(opts.ServerLogLevel))

	p := &Platform{
		opts:          opts,
		defaultTenant: defaultTenant,
		logger:        logger,
		uploader:      uploader,
		http:          httpClient,
		reg:           registry.New(),
	}
	p.engine = engine.NewClient(httpClient, logger, engine.Options{SettingsTTL: opts.Cache.Settings.TTL()})

	if err := p.buildServices(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Platform) buildServices() error {
	var (
		knowledgeProvider knowledge.Provider
		documentProvider  document.Provider
		secretProvider    secret.Provider
	)
	if p.opts.LocalMode {
		kp, err := knowledge.NewLocal(p.opts.LocalKnowledgeDirs...)
		if err != nil {
			return fmt.Errorf("local knowledge provider: %w", err)
		}
		dp, err := document.NewLocal()
		if err != nil {
			return fmt.Errorf("local document provider: %w", err)
		}
		knowledgeProvider, documentProvider, secretProvider = kp, dp, secret.NewLocal()
	} else {
		knowledgeProvider = knowledge.NewServer(p.http)
		documentProvider = document.NewServer(p.http)
		secretProvider = secret.NewServer(p.http)
	}

	msgSvc := messaging.NewService(p.http, p.logger)
	p.msgActs = messaging.NewActivities(msgSvc)
	p.Messenger = messaging.NewMessenger(msgSvc)

	p.a2aActs = a2a.NewActivities(p.engine, p.reg)
	p.Dispatcher = a2a.NewDispatcher(p.engine, p.a2aActs)

	p.scheduleActs = schedule.NewActivities(p.engine)
	p.Schedules = schedule.NewService(p.engine, p.logger)

	p.Knowledge = knowledge.NewService(knowledgeProvider, p.opts.Cache.Knowledge.TTL(), p.logger)
	p.knowledgeActs = knowledge.NewActivities(p.Knowledge)

	p.Documents = document.NewService(documentProvider, p.logger)
	p.documentActs = document.NewActivities(p.Documents)

	p.Secrets = secret.NewService(secretProvider)
	p.secretActs = secret.NewActivities(p.Secrets)

	p.Tasks = task.NewStarter(p.engine, p.reg)
	p.taskWorkflows = task.NewWorkflows(p.reg, msgSvc)
	p.runner = agent.NewRunner(p.reg, msgSvc)

	p.Usage = usage.NewReporter(p.http, p.logger, usage.Config{})
	return nil
}

// Logger returns the process logger.
func (p *Platform) Logger() *zap.Logger { return p.logger }

// Registry returns the agent catalog.
func (p *Platform) Registry() *registry.Registry { return p.reg }

// Engine returns the shared engine client.
func (p *Platform) Engine() *engine.Client { return p.engine }

// HTTP returns the shared backend client.
func (p *Platform) HTTP() *httpx.Client { return p.http }

// DefaultTenant returns the tenant resolved from options and credentials.
func (p *Platform) DefaultTenant() string { return p.defaultTenant }

// RegisterAgent freezes an agent declaration into the registry. All agents
// must be registered before Start.
func (p *Platform) RegisterAgent(a *agent.Agent) error {
	def, err := a.Definition(p.defaultTenant)
	if err != nil {
		return err
	}
	return p.reg.RegisterAgent(def)
}

// Start launches one worker per registered workflow definition and blocks
// until ctx is cancelled, then stops the workers and flushes buffers.
// In-flight executions are not terminated.
func (p *Platform) Start(ctx context.Context) error {
	if p.uploader != nil {
		p.uploader.Start()
	}

	for _, agentDef := range p.reg.Agents() {
		for _, wf := range agentDef.Workflows {
			if err := p.startWorker(ctx, agentDef, wf); err != nil {
				p.stopWorkers()
				return err
			}
		}
	}
	p.logger.Info("Platform started", zap.Int("workers", len(p.workers)))

	<-ctx.Done()
	p.Shutdown()
	return nil
}

func (p *Platform) startWorker(ctx context.Context, agentDef *registry.AgentDefinition, wf *registry.WorkflowDefinition) error {
	queue, err := ident.TaskQueue(wf.WorkflowType, agentDef.SystemScoped, agentDef.Tenant)
	if err != nil {
		return fmt.Errorf("task queue for %s: %w", wf.WorkflowType, err)
	}
	w, err := p.engine.NewWorker(ctx, queue, worker.Options{
		MaxConcurrentWorkflowTaskExecutionSize: wf.Workers,
		MaxConcurrentActivityExecutionSize:     wf.Workers,
	})
	if err != nil {
		return err
	}

	if wf.IsTask {
		w.RegisterWorkflowWithOptions(p.taskWorkflows.TaskWorkflow, workflow.RegisterOptions{Name: wf.WorkflowType})
	} else {
		w.RegisterWorkflowWithOptions(p.runner.WorkflowFunc(wf), workflow.RegisterOptions{Name: wf.WorkflowType})
	}
	p.registerActivities(w)

	if err := w.Start(); err != nil {
		return fmt.Errorf("start worker on %s: %w", queue, err)
	}
	p.logger.Info("Worker started",
		zap.String("task_queue", queue),
		zap.String("workflow_type", wf.WorkflowType),
		zap.Int("workers", wf.Workers),
	)
	p.workers = append(p.workers, w)
	return nil
}

// registerActivities installs the system activities every worker carries, so
// the executor can dispatch by name from any workflow.
func (p *Platform) registerActivities(w worker.Worker) {
	reg := func(fn any, name string) {
		w.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
	}
	reg(p.msgActs.Send, messaging.ActivitySend)

	reg(p.a2aActs.Query, a2a.ActivityQuery)
	reg(p.a2aActs.Update, a2a.ActivityUpdate)
	reg(p.a2aActs.SendChat, a2a.ActivityChat)

	reg(p.scheduleActs.CreateIfNotExists, schedule.ActivityCreateIfNotExists)

	reg(p.knowledgeActs.Get, knowledge.ActivityGet)
	reg(p.knowledgeActs.Update, knowledge.ActivityUpdate)
	reg(p.knowledgeActs.Delete, knowledge.ActivityDelete)
	reg(p.knowledgeActs.List, knowledge.ActivityList)

	reg(p.documentActs.Save, document.ActivitySave)
	reg(p.documentActs.Get, document.ActivityGet)
	reg(p.documentActs.GetByKey, document.ActivityGetByKey)
	reg(p.documentActs.Query, document.ActivityQuery)
	reg(p.documentActs.Update, document.ActivityUpdate)
	reg(p.documentActs.Delete, document.ActivityDelete)
	reg(p.documentActs.DeleteMany, document.ActivityDeleteMany)
	reg(p.documentActs.Exists, document.ActivityExists)

	reg(p.secretActs.Get, secret.ActivityGet)
	reg(p.secretActs.Set, secret.ActivitySet)
	reg(p.secretActs.Delete, secret.ActivityDelete)
}

func (p *Platform) stopWorkers() {
	for _, w := range p.workers {
		w.Stop()
	}
	p.workers = nil
}

// Shutdown stops workers and flushes buffered telemetry. Safe to call once
// after Start returns early.
func (p *Platform) Shutdown() {
	p.logger.Info("Platform shutting down")
	p.stopWorkers()
	p.Usage.Close(shutdownGrace)
	if p.uploader != nil {
		p.uploader.Flush(shutdownGrace)
	}
	p.engine.Close()
}
