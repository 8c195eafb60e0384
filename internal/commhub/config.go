package commhub

import (
	"fmt"

	"github.com/autopeer-io/commhub/internal/commhub/server"
	"github.com/autopeer-io/commhub/internal/communication"
	"github.com/autopeer-io/commhub/internal/communication/batch"
	"github.com/autopeer-io/commhub/internal/communication/core"
	"github.com/autopeer-io/commhub/internal/communication/delivery"
	"github.com/autopeer-io/commhub/internal/communication/destination"
	"github.com/autopeer-io/commhub/internal/communication/dispatch"
	"github.com/autopeer-io/commhub/internal/communication/encoding"
	"github.com/autopeer-io/commhub/internal/communication/execution"
	"github.com/autopeer-io/commhub/internal/communication/inbound"
	"github.com/autopeer-io/commhub/internal/communication/outbound"
	"github.com/autopeer-io/commhub/internal/communication/registration"
	"github.com/autopeer-io/commhub/internal/communication/router"
	"github.com/autopeer-io/commhub/internal/communication/store"
	"github.com/autopeer-io/commhub/internal/communication/strategy"
	"github.com/autopeer-io/commhub/pkg/mqtt/topic"
	"github.com/autopeer-io/commhub/pkg/options"
)

type Config struct {
	HttpOptions         *options.HttpOptions
	GrpcOptions         *options.GrpcOptions
	MqttOptions         *options.MqttOptions
	S3Options           *options.S3Options
	DispatchOptions     *options.DispatchOptions
	RouterOptions       *options.RouterOptions
	DestinationsOptions *options.DestinationsOptions
	RegistrationOptions *options.RegistrationOptions
	BatchOptions        *options.BatchOptions
}

// New wires the device communication subsystem and the servers in front of
// it. Nothing connects until Run.
func (cfg *Config) New() (*CommHub, error) {
	// 1. Storage
	repo := store.NewMemory()

	// 2. Destinations (one connection per destination)
	destinations := make([]core.CommandDestination, 0, len(cfg.DestinationsOptions.Items))
	for _, d := range cfg.DestinationsOptions.Items {
		dest, err := cfg.newDestination(d)
		if err != nil {
			return nil, fmt.Errorf("failed to init destination %q: %w", d.ID, err)
		}
		destinations = append(destinations, dest)
	}

	// 3. Routing and command processing
	var outboundRouter core.OutboundCommandRouter
	switch cfg.RouterOptions.Type {
	case options.RouterSpecification:
		outboundRouter = router.NewSpecificationMapping(cfg.RouterOptions.Mappings, cfg.RouterOptions.DefaultDestination)
	default:
		outboundRouter = router.NewSingleChoice(cfg.RouterOptions.DefaultDestination)
	}
	processing := strategy.New(repo, execution.NewBuilder(), outboundRouter, destinations)

	// 4. Batch operations and asynchronous dispatch
	batches := batch.NewManager(repo, repo, repo, processing, cfg.BatchOptions.Concurrency)
	processor := dispatch.NewProcessor(processing, batches, dispatch.Config{
		NumThreads: cfg.DispatchOptions.NumThreads,
		QueueSize:  cfg.DispatchOptions.QueueSize,
	})

	// 5. Registration and inbound traffic
	registrations := registration.NewManager(repo, processing, registration.Config{
		AutoRegister:          cfg.RegistrationOptions.AutoRegister,
		DefaultSpecification:  cfg.RegistrationOptions.DefaultSpecification,
		AllowedSpecifications: cfg.RegistrationOptions.AllowedSpecifications,
	})
	inboundStrategy := inbound.NewStrategy(registrations, repo)

	var sources []core.InboundEventSource
	if cfg.MqttOptions.Inbound {
		client, err := InitializeMQTTClient(cfg.MqttOptions, "ingress")
		if err != nil {
			return nil, fmt.Errorf("failed to init inbound mqtt client: %w", err)
		}
		sources = append(sources, inbound.NewMQTTSource(client, topic.NewBuilder(cfg.MqttOptions.TopicRoot), inboundStrategy, inbound.MQTTSourceOptions{
			ID:             "mqtt",
			SharedGroup:    cfg.MqttOptions.SharedGroup,
			QoS:            cfg.MqttOptions.QoS,
			ConnectTimeout: cfg.MqttOptions.ConnectTimeout,
		}))
	}

	subsystem := communication.NewSubsystem(communication.Config{
		ProcessingStrategy:  processing,
		Destinations:        destinations,
		Router:              outboundRouter,
		OutboundStrategy:    outbound.New(processor),
		RegistrationManager: registrations,
		BatchManager:        batches,
		InboundStrategy:     inboundStrategy,
		InboundSources:      sources,
	})

	// 6. Ingress servers
	srvManager := server.NewManager(&server.Config{
		HttpOptions: cfg.HttpOptions,
		GrpcOptions: cfg.GrpcOptions,
	}, subsystem, repo)

	return &CommHub{
		subsystem:     subsystem,
		serverManager: srvManager,
	}, nil
}

func (cfg *Config) newDestination(d options.DestinationOptions) (core.CommandDestination, error) {
	var (
		encoder     destination.Encoder[[]byte]
		contentType string
		extension   string
	)
	switch d.Encoder {
	case options.EncoderProtobuf:
		e := encoding.NewProtobufEncoder()
		encoder, contentType, extension = e, e.ContentType(), ".pb"
	default:
		e := encoding.NewJSONEncoder()
		encoder, contentType, extension = e, e.ContentType(), ".json"
	}

	switch d.Transport {
	case options.TransportMQTT:
		client, err := InitializeMQTTClient(cfg.MqttOptions, "egress-"+d.ID)
		if err != nil {
			return nil, err
		}
		provider := delivery.NewMQTTProvider(client, delivery.MQTTProviderOptions{
			QoS:            cfg.MqttOptions.QoS,
			Retain:         cfg.MqttOptions.Retain,
			ConnectTimeout: cfg.MqttOptions.ConnectTimeout,
		})
		extractor := delivery.NewMQTTParameterExtractor(topic.NewBuilder(cfg.MqttOptions.TopicRoot))
		return destination.New[[]byte, delivery.MQTTParameters](d.ID, encoder, extractor, provider), nil

	case options.TransportS3:
		client, err := InitializeObjectStore(cfg.S3Options)
		if err != nil {
			return nil, err
		}
		provider := delivery.NewS3Provider(client, delivery.S3ProviderOptions{
			Bucket:       cfg.S3Options.BucketName,
			Region:       cfg.S3Options.Region,
			ContentType:  contentType,
			CreateBucket: cfg.S3Options.CreateBucket,
		})
		extractor := delivery.NewS3ParameterExtractor(cfg.S3Options.Prefix, extension)
		return destination.New[[]byte, delivery.ObjectParameters](d.ID, encoder, extractor, provider), nil

	default:
		return nil, fmt.Errorf("unknown transport %q", d.Transport)
	}
}
