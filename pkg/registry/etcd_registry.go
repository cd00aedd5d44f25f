package registry

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	clientv3 "go.etcd.io/etcd/client/v3"

	"media-transcode-service/pkg/config"
	"media-transcode-service/pkg/logger"
)

const keyPrefix = "/services/"

func serviceKeyPrefix(serviceName string) string {
	return keyPrefix + serviceName + "/"
}

func newClient(cfg config.EtcdConfig) (*clientv3.Client, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}
	return client, nil
}

// ServiceRegistry registers this worker's task push endpoint into etcd.
type ServiceRegistry struct {
	client      *clientv3.Client
	serviceName string
	serviceID   string
	serviceAddr string
	ttl         int64
	leaseID     clientv3.LeaseID
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewServiceRegistry creates a new ServiceRegistry instance.
func NewServiceRegistry(etcdCfg config.EtcdConfig, svcCfg config.ServiceRegistryConfig, serviceAddr string) (*ServiceRegistry, error) {
	client, err := newClient(etcdCfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	ttl := int64(svcCfg.TTL.Seconds())
	if ttl <= 0 {
		ttl = 30
	}
	return &ServiceRegistry{
		client:      client,
		serviceName: svcCfg.ServiceName,
		serviceID:   svcCfg.ServiceID,
		serviceAddr: serviceAddr,
		ttl:         ttl,
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Register registers service instance under a lease that is kept alive until Deregister.
func (r *ServiceRegistry) Register() error {
	leaseResp, err := r.client.Grant(r.ctx, r.ttl)
	if err != nil {
		return fmt.Errorf("failed to grant lease: %w", err)
	}
	r.leaseID = leaseResp.ID

	key := serviceKeyPrefix(r.serviceName) + r.serviceID
	if _, err := r.client.Put(r.ctx, key, r.serviceAddr, clientv3.WithLease(r.leaseID)); err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	go r.keepAlive()

	logger.Infof("Service registered key=%s addr=%s", key, r.serviceAddr)
	return nil
}

func (r *ServiceRegistry) keepAlive() {
	ch, err := r.client.KeepAlive(r.ctx, r.leaseID)
	if err != nil {
		logger.Warnf("Failed to keep alive lease error=%v", err)
		return
	}
	for {
		select {
		case <-r.ctx.Done():
			return
		case ka := <-ch:
			if ka == nil {
				logger.Warnf("Keep alive channel closed service=%s", r.serviceName)
				return
			}
		}
	}
}

// Deregister removes service registration.
func (r *ServiceRegistry) Deregister() error {
	r.cancel()
	if r.leaseID != 0 {
		if _, err := r.client.Revoke(context.Background(), r.leaseID); err != nil {
			logger.Warnf("Failed to revoke lease error=%v", err)
		}
	}
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close etcd client: %w", err)
	}
	logger.Infof("Service deregistered id=%s", r.serviceID)
	return nil
}

// ServiceDiscovery resolves registered push endpoints and keeps a watched cache.
type ServiceDiscovery struct {
	client   *clientv3.Client
	services map[string][]string
	mutex    sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewServiceDiscovery initialises discovery client.
func NewServiceDiscovery(cfg config.EtcdConfig) (*ServiceDiscovery, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ServiceDiscovery{
		client:   client,
		services: make(map[string][]string),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// DiscoverService fetches available instances from etcd and caches them.
func (sd *ServiceDiscovery) DiscoverService(serviceName string) ([]string, error) {
	resp, err := sd.client.Get(sd.ctx, serviceKeyPrefix(serviceName), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to get service instances: %w", err)
	}

	addresses := make([]string, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		addresses = append(addresses, string(kv.Value))
	}

	sd.mutex.Lock()
	sd.services[serviceName] = addresses
	sd.mutex.Unlock()

	return addresses, nil
}

// PickOne returns a random cached instance, refreshing the cache when empty.
func (sd *ServiceDiscovery) PickOne(serviceName string) (string, error) {
	sd.mutex.RLock()
	addrs := sd.services[serviceName]
	sd.mutex.RUnlock()
	if len(addrs) == 0 {
		var err error
		if addrs, err = sd.DiscoverService(serviceName); err != nil {
			return "", err
		}
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("no instance registered for %s", serviceName)
	}
	return addrs[rand.Intn(len(addrs))], nil
}

// WatchService subscribes to etcd updates for the target service.
func (sd *ServiceDiscovery) WatchService(serviceName string) {
	prefix := serviceKeyPrefix(serviceName)
	watchCh := sd.client.Watch(sd.ctx, prefix, clientv3.WithPrefix())

	go func() {
		for {
			select {
			case <-sd.ctx.Done():
				return
			case resp, ok := <-watchCh:
				if !ok {
					return
				}
				if err := resp.Err(); err != nil {
					logger.Warnf("etcd watch error service=%s error=%v", serviceName, err)
					continue
				}
				if _, err := sd.DiscoverService(serviceName); err != nil {
					logger.Warnf("refresh service instances failed service=%s error=%v", serviceName, err)
					continue
				}
				for _, ev := range resp.Events {
					logger.Debugf("service instance changed type=%s key=%s", ev.Type, strings.TrimPrefix(string(ev.Kv.Key), prefix))
				}
			}
		}
	}()
}

// Close stops watches and closes the client.
func (sd *ServiceDiscovery) Close() error {
	sd.cancel()
	return sd.client.Close()
}
